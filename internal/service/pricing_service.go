package service

import (
    "context"
    "fmt"
    "time"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// PricingService derives a total price for an arbitrary occupancy from the
// finite table of pre-computed reference rows.  Exact per-age pricing is
// not stored for every combination of ages; where the requested occupancy
// has no direct row, a marginal per-child cost is derived from any
// with-children exemplar row for the same flight/lodging pair.
type PricingService struct {
    prices   store.PriceSource
    currency string
}

func NewPricingService(prices store.PriceSource, currency string) *PricingService {
    return &PricingService{prices: prices, currency: currency}
}

// Quote prices (adults, childrenAges) on a flight/lodging pair.  Infants
// count as children aged 0-1 and always price at zero; ages 12 and up are
// adults and must be counted in adults, not childrenAges.
//
// All arithmetic is in integer minor units.  The per-child component
// costs come from a truncating division, so the sum of all children's
// shares never exceeds the exemplar's observed delta.
func (s *PricingService) Quote(ctx context.Context, adults int, childrenAges []int, flightOptionID, lodgingOptionID string) (*model.Quote, error) {
    if adults < 1 {
        return nil, validationf("at least one adult is required")
    }
    if flightOptionID == "" || lodgingOptionID == "" {
        return nil, validationf("flight and lodging options are required")
    }
    for _, age := range childrenAges {
        if age < 0 {
            return nil, validationf("child age %d is not valid", age)
        }
        if age > model.MaxChildAge {
            return nil, validationf("age %d is an adult fare; count the traveler in adults", age)
        }
    }

    baseline, err := s.prices.BaselineRow(ctx, adults, flightOptionID, lodgingOptionID)
    if err != nil {
        return nil, err
    }
    quote := &model.Quote{
        Adults:       adults,
        ChildrenAges: childrenAges,
        BaseCents:    baseline.TotalCents,
        TotalCents:   baseline.TotalCents,
        Currency:     s.currency,
        Nights:       baseline.Nights,
    }
    if len(childrenAges) == 0 {
        return quote, nil
    }

    // Any with-children row for the same options will do; it need not
    // match the child count being priced.  Its own adults-only baseline
    // anchors the delta.
    exemplar, err := s.prices.ChildExemplar(ctx, flightOptionID, lodgingOptionID)
    if err != nil {
        return nil, err
    }
    exemplarBase, err := s.prices.BaselineRow(ctx, exemplar.AdultsCount, flightOptionID, lodgingOptionID)
    if err != nil {
        return nil, err
    }
    if exemplar.ChildrenCount < 1 {
        return nil, fmt.Errorf("exemplar row %d for %s/%s has no children: %w",
            exemplar.ID, flightOptionID, lodgingOptionID, store.ErrPriceUnavailable)
    }

    perChildFlight := perChild(exemplar.FlightCents, exemplarBase.FlightCents, exemplar.ChildrenCount)
    perChildLodging := perChild(exemplar.LodgingCents, exemplarBase.LodgingCents, exemplar.ChildrenCount)
    perChildTransfer := perChild(exemplar.TransferCents, exemplarBase.TransferCents, exemplar.ChildrenCount)

    var childrenTotal int64
    youngSeen := 0
    for _, age := range childrenAges {
        switch {
        case age <= model.MaxInfantAge:
            // Infants travel free.
        case age <= 6:
            childrenTotal += perChildFlight + perChildTransfer
            youngSeen++
            // The first young child rides free on lodging.
            if youngSeen > 1 {
                childrenTotal += perChildLodging
            }
        default:
            childrenTotal += perChildFlight + perChildLodging + perChildTransfer
        }
    }

    quote.ChildrenCents = childrenTotal
    quote.TotalCents = baseline.TotalCents + childrenTotal
    return quote, nil
}

// perChild is the marginal cost of one child for a single component,
// taken as the absolute component delta between the exemplar and its
// baseline, split evenly with truncation.
func perChild(exemplarCents, baselineCents int64, children int) int64 {
    delta := exemplarCents - baselineCents
    if delta < 0 {
        delta = -delta
    }
    return delta / int64(children)
}

// Nights is the calendar-date difference between the outbound arrival and
// the return departure.  Two timestamps 23 hours apart that cross a date
// boundary count as one night, never zero.
func Nights(arrival, departure time.Time) int {
    return int(dateOnly(departure).Sub(dateOnly(arrival)) / (24 * time.Hour))
}
