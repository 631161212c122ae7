package service

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// fakePrices serves reference rows from a slice the way the price table
// does: baselines by exact (adults, 0 children, options) match, exemplars
// as the first with-children row for the options.
type fakePrices struct {
    rows []model.PackagePrice
}

func (f *fakePrices) BaselineRow(_ context.Context, adults int, flightOptionID, lodgingOptionID string) (*model.PackagePrice, error) {
    for i := range f.rows {
        r := f.rows[i]
        if r.AdultsCount == adults && r.ChildrenCount == 0 &&
            r.FlightOptionID == flightOptionID && r.LodgingOptionID == lodgingOptionID {
            return &r, nil
        }
    }
    return nil, fmt.Errorf("baseline %d adults on %s/%s: %w", adults, flightOptionID, lodgingOptionID, store.ErrPriceUnavailable)
}

func (f *fakePrices) ChildExemplar(_ context.Context, flightOptionID, lodgingOptionID string) (*model.PackagePrice, error) {
    for i := range f.rows {
        r := f.rows[i]
        if r.ChildrenCount > 0 && r.FlightOptionID == flightOptionID && r.LodgingOptionID == lodgingOptionID {
            return &r, nil
        }
    }
    return nil, fmt.Errorf("with-children exemplar on %s/%s: %w", flightOptionID, lodgingOptionID, store.ErrPriceUnavailable)
}

// standardTable prices a single flight/lodging pair for two adults, with
// a 2-adults-1-child exemplar whose per-child deltas are 30000 flight,
// 40000 lodging and 6000 transfer.
func standardTable() *fakePrices {
    return &fakePrices{rows: []model.PackagePrice{
        {
            ID: 1, AdultsCount: 2, ChildrenCount: 0,
            FlightOptionID: "FL-OSL-AYT", LodgingOptionID: "LG-GRAND",
            FlightCents: 80000, LodgingCents: 100000, TransferCents: 20000,
            TotalCents: 200000, Nights: 7,
        },
        {
            ID: 2, AdultsCount: 2, ChildrenCount: 1,
            FlightOptionID: "FL-OSL-AYT", LodgingOptionID: "LG-GRAND",
            FlightCents: 110000, LodgingCents: 140000, TransferCents: 26000,
            TotalCents: 276000, Nights: 7,
        },
    }}
}

func TestQuoteAdultsOnly(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")

    q, err := svc.Quote(context.Background(), 2, nil, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, int64(200000), q.TotalCents)
    assert.Equal(t, int64(200000), q.BaseCents)
    assert.Zero(t, q.ChildrenCents)
    assert.Equal(t, 7, q.Nights)
    assert.Equal(t, "EUR", q.Currency)
}

func TestQuoteInfantsAreFree(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")

    withInfant, err := svc.Quote(context.Background(), 2, []int{0}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    without, err := svc.Quote(context.Background(), 2, nil, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, without.TotalCents, withInfant.TotalCents)

    oneYearOld, err := svc.Quote(context.Background(), 2, []int{1}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, without.TotalCents, oneYearOld.TotalCents)
}

func TestQuoteYoungChildLodgingFirstFree(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")

    // One young child pays flight + transfer but rides free on lodging.
    one, err := svc.Quote(context.Background(), 2, []int{3}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, int64(36000), one.ChildrenCents)
    assert.Equal(t, int64(236000), one.TotalCents)

    // The second young child pays lodging as well.
    two, err := svc.Quote(context.Background(), 2, []int{3, 4}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, int64(36000+36000+40000), two.ChildrenCents)
}

func TestQuoteOlderChildFullRate(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")

    q, err := svc.Quote(context.Background(), 2, []int{9}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, int64(30000+40000+6000), q.ChildrenCents)
    assert.Equal(t, int64(276000), q.TotalCents)
}

func TestQuoteMixedAges(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")

    // Infant free, young child without lodging, older child at full rate.
    q, err := svc.Quote(context.Background(), 2, []int{1, 5, 10}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.Equal(t, int64(36000+76000), q.ChildrenCents)
}

func TestQuotePerChildDivisionTruncates(t *testing.T) {
    prices := standardTable()
    // A two-children exemplar with deltas that do not divide evenly.
    prices.rows[1] = model.PackagePrice{
        ID: 2, AdultsCount: 2, ChildrenCount: 2,
        FlightOptionID: "FL-OSL-AYT", LodgingOptionID: "LG-GRAND",
        FlightCents: 110001, LodgingCents: 140000, TransferCents: 26001,
        TotalCents: 276002, Nights: 7,
    }
    svc := NewPricingService(prices, "EUR")

    q, err := svc.Quote(context.Background(), 2, []int{9}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    // 30001/2 -> 15000, 40000/2 -> 20000, 6001/2 -> 3000.
    assert.Equal(t, int64(15000+20000+3000), q.ChildrenCents)

    // The two children's shares together never exceed the observed delta.
    two, err := svc.Quote(context.Background(), 2, []int{9, 10}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    assert.LessOrEqual(t, two.ChildrenCents, int64(30001+40000+6001))
}

func TestQuoteExemplarAnchorsOnItsOwnBaseline(t *testing.T) {
    // The only with-children row is for 3 adults; pricing 2 adults must
    // take the delta against the 3-adult baseline, not the 2-adult one.
    prices := standardTable()
    prices.rows[1].AdultsCount = 3
    prices.rows = append(prices.rows, model.PackagePrice{
        ID: 3, AdultsCount: 3, ChildrenCount: 0,
        FlightOptionID: "FL-OSL-AYT", LodgingOptionID: "LG-GRAND",
        FlightCents: 95000, LodgingCents: 115000, TransferCents: 23000,
        TotalCents: 233000, Nights: 7,
    })
    svc := NewPricingService(prices, "EUR")

    q, err := svc.Quote(context.Background(), 2, []int{9}, "FL-OSL-AYT", "LG-GRAND")
    require.NoError(t, err)
    // Deltas against the 3-adult baseline: 15000 + 25000 + 3000.
    assert.Equal(t, int64(15000+25000+3000), q.ChildrenCents)
    assert.Equal(t, int64(200000+43000), q.TotalCents)
}

func TestQuoteUnavailable(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")

    // No baseline for this occupancy.
    _, err := svc.Quote(context.Background(), 4, nil, "FL-OSL-AYT", "LG-GRAND")
    assert.ErrorIs(t, err, store.ErrPriceUnavailable)

    // No rows at all for an unknown pair.
    _, err = svc.Quote(context.Background(), 2, nil, "FL-NOPE", "LG-GRAND")
    assert.ErrorIs(t, err, store.ErrPriceUnavailable)

    // Children requested but no with-children exemplar exists.
    noExemplar := &fakePrices{rows: standardTable().rows[:1]}
    _, err = NewPricingService(noExemplar, "EUR").Quote(context.Background(), 2, []int{9}, "FL-OSL-AYT", "LG-GRAND")
    assert.ErrorIs(t, err, store.ErrPriceUnavailable)
}

func TestQuoteValidation(t *testing.T) {
    svc := NewPricingService(standardTable(), "EUR")
    var verr *ValidationError

    _, err := svc.Quote(context.Background(), 0, nil, "FL-OSL-AYT", "LG-GRAND")
    assert.True(t, errors.As(err, &verr))

    _, err = svc.Quote(context.Background(), 2, []int{12}, "FL-OSL-AYT", "LG-GRAND")
    assert.True(t, errors.As(err, &verr), "age 12 is an adult fare")

    _, err = svc.Quote(context.Background(), 2, []int{-1}, "FL-OSL-AYT", "LG-GRAND")
    assert.True(t, errors.As(err, &verr))

    _, err = svc.Quote(context.Background(), 2, nil, "", "LG-GRAND")
    assert.True(t, errors.As(err, &verr))
}

func TestNightsFromCalendarDates(t *testing.T) {
    cases := []struct {
        name               string
        arrival, departure time.Time
        want               int
    }{
        {
            name:      "23 hours across midnight is one night",
            arrival:   time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC),
            departure: time.Date(2024, 6, 2, 1, 0, 0, 0, time.UTC),
            want:      1,
        },
        {
            name:      "same date is zero nights",
            arrival:   time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
            departure: time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC),
            want:      0,
        },
        {
            name:      "one week",
            arrival:   time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
            departure: time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC),
            want:      7,
        },
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            assert.Equal(t, tc.want, Nights(tc.arrival, tc.departure))
        })
    }
}
