package model

// PackagePrice is one pre-computed reference price point, produced by an
// external pricing job and treated as read-only input.  Rows are keyed by
// occupancy and the selected flight/lodging options; component prices are
// integer minor units.
type PackagePrice struct {
    ID              uint64 // package_prices.id
    AdultsCount     int    // package_prices.adults_count
    ChildrenCount   int    // package_prices.children_count
    FlightOptionID  string // package_prices.flight_option_id
    LodgingOptionID string // package_prices.lodging_option_id
    FlightCents     int64  // package_prices.flight_cents
    LodgingCents    int64  // package_prices.lodging_cents
    TransferCents   int64  // package_prices.transfer_cents
    TotalCents      int64  // package_prices.total_cents
    Nights          int    // package_prices.nights
}

// Quote is the result of a price calculation for a concrete occupancy.
// BaseCents is the adults-only reference total; ChildrenCents is the sum
// of per-child marginal contributions across all components.
type Quote struct {
    Adults        int    `json:"adults"`
    ChildrenAges  []int  `json:"children_ages,omitempty"`
    BaseCents     int64  `json:"base_cents"`
    ChildrenCents int64  `json:"children_cents"`
    TotalCents    int64  `json:"total_cents"`
    Currency      string `json:"currency"`
    Nights        int    `json:"nights"`
}
