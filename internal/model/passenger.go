package model

import "fmt"

// PassengerKind tags a traveler record.  The age bands mirror the pricing
// rules: infants are age <= 1, children span ages 2-11, and anyone 12 or
// older must be booked as an adult before a request reaches the core.
type PassengerKind string

const (
    PassengerAdult  PassengerKind = "ADULT"
    PassengerChild  PassengerKind = "CHILD"
    PassengerInfant PassengerKind = "INFANT"
)

// Age band boundaries shared by validation and pricing.
const (
    MaxInfantAge = 1  // age <= 1 travels free
    MinChildAge  = 2  // youngest chargeable child
    MaxChildAge  = 11 // oldest child; 12+ is an adult
)

// Passenger is one traveler attached to a booking.  The record is a tagged
// variant: ADULT carries no age, CHILD requires an age within the child
// band, INFANT may carry an age that must fall inside the infant band.
type Passenger struct {
    ID        uint64        // booking_passengers.id
    BookingID uint64        // booking_passengers.booking_id
    Kind      PassengerKind // booking_passengers.kind
    FullName  string        // booking_passengers.full_name
    Age       *int          // booking_passengers.age (nullable; required for CHILD)
}

// Validate enforces the tagged-union shape at the API boundary so the core
// never sees a dynamically shaped traveler record.
func (p Passenger) Validate() error {
    if p.FullName == "" {
        return fmt.Errorf("passenger name is required")
    }
    switch p.Kind {
    case PassengerAdult:
        if p.Age != nil && *p.Age < MaxChildAge+1 {
            return fmt.Errorf("adult passenger %q has age %d; travelers under %d must be CHILD or INFANT", p.FullName, *p.Age, MaxChildAge+1)
        }
        return nil
    case PassengerChild:
        if p.Age == nil {
            return fmt.Errorf("child passenger %q requires an age", p.FullName)
        }
        if *p.Age < MinChildAge || *p.Age > MaxChildAge {
            return fmt.Errorf("child passenger %q has age %d outside %d-%d; book as %s", p.FullName, *p.Age, MinChildAge, MaxChildAge, bandFor(*p.Age))
        }
        return nil
    case PassengerInfant:
        if p.Age != nil && *p.Age > MaxInfantAge {
            return fmt.Errorf("infant passenger %q has age %d; infants are age %d or under", p.FullName, *p.Age, MaxInfantAge)
        }
        return nil
    default:
        return fmt.Errorf("unknown passenger kind %q", p.Kind)
    }
}

func bandFor(age int) PassengerKind {
    switch {
    case age <= MaxInfantAge:
        return PassengerInfant
    case age <= MaxChildAge:
        return PassengerChild
    default:
        return PassengerAdult
    }
}
