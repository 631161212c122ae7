package model

import "time"

// FlightInventory tracks the remaining sellable seats for one flight
// option (a specific outbound+return pairing).  AvailableSeats never
// falls below zero; the repository enforces this inside the decrement
// statement itself rather than with a read-then-write.
type FlightInventory struct {
    FlightOptionID string    // flight_inventory.flight_option_id
    TotalSeats     int       // flight_inventory.total_seats (fixed at creation)
    AvailableSeats int       // flight_inventory.available_seats
    UpdatedAt      time.Time // flight_inventory.updated_at
}

// RoomNight is one cell of the lodging capacity grid: how many rooms of a
// lodging option remain sellable for a single night.  A lodging line
// consumes one RoomNight row per night of its stay.
type RoomNight struct {
    LodgingOptionID string    // room_nights.lodging_option_id
    Night           time.Time // room_nights.night (calendar date)
    TotalRooms      int       // room_nights.total_rooms
    AvailableRooms  int       // room_nights.available_rooms
    BookedRooms     int       // room_nights.booked_rooms
}
