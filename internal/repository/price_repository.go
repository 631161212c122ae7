package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// PriceRepo reads the package_prices reference table.  Rows are produced
// by an external pricing job; this service only ever selects from them,
// so no method takes a transaction.
type PriceRepo struct {
    db *sql.DB
}

// NewPriceRepo returns a PriceRepo bound to the given database.
func NewPriceRepo(db *sql.DB) *PriceRepo { return &PriceRepo{db: db} }

const priceColumns = `id, adults_count, children_count, flight_option_id, lodging_option_id,
    flight_cents, lodging_cents, transfer_cents, total_cents, nights`

// BaselineRow returns the adults-only reference row for the occupancy and
// options, or store.ErrPriceUnavailable when none exists.
func (r *PriceRepo) BaselineRow(ctx context.Context, adults int, flightOptionID, lodgingOptionID string) (*model.PackagePrice, error) {
    q := `SELECT ` + priceColumns + `
          FROM package_prices
          WHERE adults_count = ? AND children_count = 0
            AND flight_option_id = ? AND lodging_option_id = ?
          LIMIT 1`
    row := r.db.QueryRowContext(ctx, q, adults, flightOptionID, lodgingOptionID)
    return scanPrice(row, fmt.Sprintf("%d adults, flight %s, lodging %s", adults, flightOptionID, lodgingOptionID))
}

// ChildExemplar returns any row with children for the options, preferring
// the smallest occupancy so the marginal derivation divides by the
// fewest children.  Returns store.ErrPriceUnavailable when none exists.
func (r *PriceRepo) ChildExemplar(ctx context.Context, flightOptionID, lodgingOptionID string) (*model.PackagePrice, error) {
    q := `SELECT ` + priceColumns + `
          FROM package_prices
          WHERE children_count > 0
            AND flight_option_id = ? AND lodging_option_id = ?
          ORDER BY children_count, adults_count
          LIMIT 1`
    row := r.db.QueryRowContext(ctx, q, flightOptionID, lodgingOptionID)
    return scanPrice(row, fmt.Sprintf("child exemplar, flight %s, lodging %s", flightOptionID, lodgingOptionID))
}

func scanPrice(row *sql.Row, desc string) (*model.PackagePrice, error) {
    var p model.PackagePrice
    err := row.Scan(&p.ID, &p.AdultsCount, &p.ChildrenCount, &p.FlightOptionID, &p.LodgingOptionID,
        &p.FlightCents, &p.LodgingCents, &p.TransferCents, &p.TotalCents, &p.Nights)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, fmt.Errorf("%s: %w", desc, store.ErrPriceUnavailable)
        }
        return nil, err
    }
    return &p, nil
}
