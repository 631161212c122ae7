package service

import (
    "context"
    "errors"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

type fakeClock struct {
    mu sync.Mutex
    t  time.Time
}

func (c *fakeClock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.t
}

func (c *fakeClock) advance(d time.Duration) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.t = c.t.Add(d)
}

func newTestService(st *fakeStore, pub EventPublisher) (*BookingService, *fakeClock) {
    clock := &fakeClock{t: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
    svc := NewBookingService(st, pub, "TRV", 0)
    svc.now = clock.Now
    return svc, clock
}

func intPtr(n int) *int { return &n }

// packageRequest is a full three-line booking: a flight for three seats,
// one room for three nights and an airport transfer.
func packageRequest() CreateHoldRequest {
    return CreateHoldRequest{
        Customer: CustomerInput{Name: "Maya Solberg", Email: "maya@example.com", Phone: "+47 915 55 123"},
        Passengers: []PassengerInput{
            {Kind: model.PassengerAdult, FullName: "Maya Solberg"},
            {Kind: model.PassengerAdult, FullName: "Jonas Solberg"},
            {Kind: model.PassengerChild, FullName: "Ida Solberg", Age: intPtr(9)},
        },
        FlightLines: []FlightLineInput{
            {FlightOptionID: "FL-OSL-AYT", Description: "OSL-AYT return", Passengers: 3, PriceCents: 210000},
        },
        LodgingLines: []LodgingLineInput{
            {LodgingOptionID: "LG-GRAND", Description: "Grand Resort, double room", Rooms: 1, PriceCents: 120000},
        },
        TransferLines: []ExtraLineInput{
            {Description: "Airport transfer", PriceCents: 20000},
        },
        CheckIn:          time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
        CheckOut:         time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC),
        TotalAmountCents: 350000,
        Currency:         "EUR",
    }
}

func seedPackageInventory(st *fakeStore) {
    st.addFlight("FL-OSL-AYT", 10)
    st.addRoomNights("LG-GRAND", time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), 3, 5)
}

func TestCreateHoldBuildsAggregate(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    pub := &fakePublisher{}
    svc, clock := newTestService(st, pub)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)

    assert.Equal(t, "TRV-0001", b.ReservationCode)
    assert.Equal(t, model.StatusHold, b.Status)
    require.NotNil(t, b.ExpiresAt)
    assert.Equal(t, clock.Now().Add(DefaultHoldTTL), *b.ExpiresAt)
    assert.Equal(t, int64(350000), b.TotalAmountCents)
    assert.Len(t, b.Lines, 3)
    assert.Len(t, b.Passengers, 3)

    // Inventory was decremented in the same transaction.
    assert.Equal(t, 7, st.flightSeats("FL-OSL-AYT"))
    for i := 0; i < 3; i++ {
        assert.Equal(t, 4, st.roomsLeft("LG-GRAND", time.Date(2026, 7, 10+i, 0, 0, 0, 0, time.UTC)))
    }

    // Line references carry the per-kind prefix.
    kinds := map[model.LineKind]string{}
    for _, l := range b.Lines {
        kinds[l.Kind] = l.Reference
    }
    assert.Contains(t, kinds[model.LineFlight], "FL-")
    assert.Contains(t, kinds[model.LineLodging], "LG-")
    assert.Contains(t, kinds[model.LineTransfer], "TR-")

    events := pub.recorded()
    require.Len(t, events, 1)
    assert.Equal(t, "TRV-0001", events[0].ReservationCode)
    assert.Equal(t, string(model.StatusHold), events[0].Status)

    b2, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    assert.Equal(t, "TRV-0002", b2.ReservationCode)
}

func TestCreateHoldValidation(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    cases := map[string]func(r *CreateHoldRequest){
        "missing customer name": func(r *CreateHoldRequest) { r.Customer.Name = " " },
        "no passengers":         func(r *CreateHoldRequest) { r.Passengers = nil },
        "no adults": func(r *CreateHoldRequest) {
            r.Passengers = []PassengerInput{{Kind: model.PassengerChild, FullName: "Ida", Age: intPtr(9)}}
        },
        "child without age": func(r *CreateHoldRequest) {
            r.Passengers[2].Age = nil
        },
        "teen booked as child": func(r *CreateHoldRequest) {
            r.Passengers[2].Age = intPtr(14)
        },
        "zero-seat flight line": func(r *CreateHoldRequest) {
            r.FlightLines[0].Passengers = 0
        },
        "check-out before check-in": func(r *CreateHoldRequest) {
            r.CheckOut = r.CheckIn
        },
        "bad currency": func(r *CreateHoldRequest) {
            r.Currency = "EURO"
        },
        "negative total": func(r *CreateHoldRequest) {
            r.TotalAmountCents = -1
        },
    }
    for name, mutate := range cases {
        t.Run(name, func(t *testing.T) {
            req := packageRequest()
            mutate(&req)
            _, err := svc.CreateHold(context.Background(), req)
            var verr *ValidationError
            require.Error(t, err)
            assert.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
            // Rejected before the transaction opened.
            assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
        })
    }
}

func TestCreateHoldIsAllOrNothing(t *testing.T) {
    st := newFakeStore()
    st.addFlight("FL-OSL-AYT", 10)
    st.addFlight("FL-AYT-OSL", 2)
    pub := &fakePublisher{}
    svc, _ := newTestService(st, pub)

    req := packageRequest()
    req.LodgingLines = nil
    req.FlightLines = []FlightLineInput{
        {FlightOptionID: "FL-OSL-AYT", Description: "outbound", Passengers: 3, PriceCents: 100000},
        {FlightOptionID: "FL-AYT-OSL", Description: "return", Passengers: 3, PriceCents: 100000},
    }

    _, err := svc.CreateHold(context.Background(), req)
    require.ErrorIs(t, err, store.ErrInsufficientInventory)

    // The first line's decrement rolled back with everything else.
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
    assert.Equal(t, 2, st.flightSeats("FL-AYT-OSL"))
    _, err = svc.GetByCode(context.Background(), "TRV-0001")
    assert.ErrorIs(t, err, store.ErrNotFound)
    assert.Empty(t, pub.recorded())

    // The sequence rolled back too: the next successful hold reuses 0001.
    st.addFlight("FL-AYT-OSL-2", 5)
    req.FlightLines[1] = FlightLineInput{FlightOptionID: "FL-AYT-OSL-2", Description: "return", Passengers: 3, PriceCents: 100000}
    b, err := svc.CreateHold(context.Background(), req)
    require.NoError(t, err)
    assert.Equal(t, "TRV-0001", b.ReservationCode)
}

func TestCreateHoldUnknownFlight(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    req := packageRequest()
    req.FlightLines[0].FlightOptionID = "FL-NOPE"
    _, err := svc.CreateHold(context.Background(), req)
    assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSequenceResyncsFromIssuedCodes(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    _, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)

    // A counter restored from an old backup lags behind the codes already
    // issued; the next allocation must resync instead of colliding.
    st.setSequence("TRV", 0)
    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    assert.Equal(t, "TRV-0002", b.ReservationCode)
}

func TestAllocateCode(t *testing.T) {
    st := newFakeStore()
    svc, _ := newTestService(st, nil)

    code, err := svc.AllocateCode(context.Background(), "")
    require.NoError(t, err)
    assert.Equal(t, "TRV-0001", code)

    code, err = svc.AllocateCode(context.Background(), "GRP")
    require.NoError(t, err)
    assert.Equal(t, "GRP-0001", code)
}

func TestConcurrentHoldsNeverOversell(t *testing.T) {
    st := newFakeStore()
    st.addFlight("FL-OSL-AYT", 6)
    svc, _ := newTestService(st, nil)

    req := packageRequest()
    req.LodgingLines = nil
    req.FlightLines[0].Passengers = 1

    var wg sync.WaitGroup
    var succeeded, short int64
    for i := 0; i < 10; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _, err := svc.CreateHold(context.Background(), req)
            switch {
            case err == nil:
                atomic.AddInt64(&succeeded, 1)
            case errors.Is(err, store.ErrInsufficientInventory):
                atomic.AddInt64(&short, 1)
            default:
                t.Errorf("unexpected error: %v", err)
            }
        }()
    }
    wg.Wait()

    assert.Equal(t, int64(6), succeeded)
    assert.Equal(t, int64(4), short)
    assert.Equal(t, 0, st.flightSeats("FL-OSL-AYT"))
}

func TestConfirmHold(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    pub := &fakePublisher{}
    svc, _ := newTestService(st, pub)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)

    confirmed, err := svc.Confirm(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusConfirmed, confirmed.Status)
    assert.Nil(t, confirmed.ExpiresAt)

    // Confirming twice is an invalid transition, not an expiry.
    _, err = svc.Confirm(context.Background(), b.ReservationCode)
    assert.ErrorIs(t, err, store.ErrInvalidState)
    assert.NotErrorIs(t, err, store.ErrHoldExpired)

    events := pub.recorded()
    require.Len(t, events, 2)
    assert.Equal(t, string(model.StatusConfirmed), events[1].Status)
    assert.Equal(t, string(model.StatusHold), events[1].PreviousStatus)
}

func TestConfirmExpiredHoldCancelsIt(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, clock := newTestService(st, nil)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    clock.advance(DefaultHoldTTL + time.Minute)

    _, err = svc.Confirm(context.Background(), b.ReservationCode)
    require.ErrorIs(t, err, store.ErrHoldExpired)
    assert.ErrorIs(t, err, store.ErrInvalidState)

    // The failed confirm still committed the cancellation and the release.
    got, err := svc.GetByCode(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, got.Status)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
    assert.Equal(t, 5, st.roomsLeft("LG-GRAND", time.Date(2026, 7, 11, 0, 0, 0, 0, time.UTC)))
}

func TestGetByCodePassiveExpiration(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, clock := newTestService(st, nil)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    clock.advance(DefaultHoldTTL + time.Second)

    got, err := svc.GetByCode(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, got.Status)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))

    // A second read is idempotent: still cancelled, nothing re-released.
    got, err = svc.GetByCode(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, got.Status)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
}

func TestGetByCodeNotFound(t *testing.T) {
    st := newFakeStore()
    svc, _ := newTestService(st, nil)
    _, err := svc.GetByCode(context.Background(), "TRV-9999")
    assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelReleasesInventoryOnce(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    assert.Equal(t, 7, st.flightSeats("FL-OSL-AYT"))

    cancelled, err := svc.Cancel(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, cancelled.Status)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
    assert.Equal(t, 5, st.roomsLeft("LG-GRAND", time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC)))

    _, err = svc.Cancel(context.Background(), b.ReservationCode)
    assert.ErrorIs(t, err, store.ErrAlreadyCancelled)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
}

func TestCancelPaidBooking(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    pub := &fakePublisher{}
    svc, _ := newTestService(st, pub)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    _, err = svc.Confirm(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    _, err = svc.MarkPaid(context.Background(), b.ReservationCode, "ch_1JfA2K")
    require.NoError(t, err)

    cancelled, err := svc.Cancel(context.Background(), b.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, cancelled.Status)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))

    events := pub.recorded()
    last := events[len(events)-1]
    assert.Equal(t, string(model.StatusCancelled), last.Status)
    assert.Equal(t, string(model.StatusPaid), last.PreviousStatus)
}

func TestMarkPaid(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)

    // A hold cannot be paid before it is confirmed.
    _, err = svc.MarkPaid(context.Background(), b.ReservationCode, "ch_1JfA2K")
    assert.ErrorIs(t, err, store.ErrInvalidState)

    _, err = svc.Confirm(context.Background(), b.ReservationCode)
    require.NoError(t, err)

    _, err = svc.MarkPaid(context.Background(), b.ReservationCode, "  ")
    var verr *ValidationError
    assert.True(t, errors.As(err, &verr))

    paid, err := svc.MarkPaid(context.Background(), b.ReservationCode, "ch_1JfA2K")
    require.NoError(t, err)
    assert.Equal(t, model.StatusPaid, paid.Status)
    require.NotNil(t, paid.PaymentRef)
    assert.Equal(t, "ch_1JfA2K", *paid.PaymentRef)
}

func TestSweepExpired(t *testing.T) {
    st := newFakeStore()
    st.addFlight("FL-OSL-AYT", 10)
    st.addRoomNights("LG-GRAND", time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC), 3, 5)
    pub := &fakePublisher{}
    svc, clock := newTestService(st, pub)

    req := packageRequest()
    req.LodgingLines = nil
    req.FlightLines[0].Passengers = 1
    for i := 0; i < 3; i++ {
        _, err := svc.CreateHold(context.Background(), req)
        require.NoError(t, err)
    }

    clock.advance(DefaultHoldTTL + time.Minute)
    fresh, err := svc.CreateHold(context.Background(), req)
    require.NoError(t, err)
    assert.Equal(t, 6, st.flightSeats("FL-OSL-AYT"))

    swept, err := svc.SweepExpired(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 3, swept)
    assert.Equal(t, 9, st.flightSeats("FL-OSL-AYT"))

    // The live hold is untouched.
    got, err := svc.GetByCode(context.Background(), fresh.ReservationCode)
    require.NoError(t, err)
    assert.Equal(t, model.StatusHold, got.Status)

    // Sweeping again finds nothing.
    swept, err = svc.SweepExpired(context.Background())
    require.NoError(t, err)
    assert.Zero(t, swept)

    var cancels int
    for _, ev := range pub.recorded() {
        if ev.Status == string(model.StatusCancelled) {
            cancels++
        }
    }
    assert.Equal(t, 3, cancels)
}

func TestSerializationConflictIsRetried(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    st.serializationFailures = maxTxAttempts - 1
    b, err := svc.CreateHold(context.Background(), packageRequest())
    require.NoError(t, err)
    assert.Equal(t, "TRV-0001", b.ReservationCode)
    assert.Equal(t, 7, st.flightSeats("FL-OSL-AYT"))
}

func TestSerializationRetriesExhaust(t *testing.T) {
    st := newFakeStore()
    seedPackageInventory(st)
    svc, _ := newTestService(st, nil)

    st.serializationFailures = maxTxAttempts
    _, err := svc.CreateHold(context.Background(), packageRequest())
    require.ErrorIs(t, err, store.ErrTxTimeout)
    assert.Equal(t, 10, st.flightSeats("FL-OSL-AYT"))
}
