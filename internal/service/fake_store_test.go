package service

import (
    "context"
    "fmt"
    "sort"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/queue"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// fakeStore is an in-memory store.Store with real transaction semantics:
// every Serializable call works on a deep copy of the state and swaps it
// in only when the callback succeeds, so a failing callback rolls back
// everything it did.  The mutex serializes transactions the same way the
// database serializes conflicting ones.
type fakeStore struct {
    mu    sync.Mutex
    state *fakeState

    // serializationFailures makes the next N transactions fail with
    // ErrSerialization before running, to exercise the retry path.
    serializationFailures int
}

type fakeState struct {
    seqs     map[string]uint64
    flights  map[string]*model.FlightInventory
    nights   map[string]map[string]*model.RoomNight
    bookings map[string]*model.Booking
    nextID   uint64
}

func newFakeStore() *fakeStore {
    return &fakeStore{state: &fakeState{
        seqs:     map[string]uint64{},
        flights:  map[string]*model.FlightInventory{},
        nights:   map[string]map[string]*model.RoomNight{},
        bookings: map[string]*model.Booking{},
    }}
}

func (f *fakeStore) Serializable(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.serializationFailures > 0 {
        f.serializationFailures--
        return fmt.Errorf("deadlock found when trying to get lock: %w", store.ErrSerialization)
    }
    tx := &fakeTx{state: f.state.clone()}
    if err := fn(ctx, tx); err != nil {
        return err
    }
    f.state = tx.state
    return nil
}

func (f *fakeStore) addFlight(id string, seats int) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.state.flights[id] = &model.FlightInventory{FlightOptionID: id, TotalSeats: seats, AvailableSeats: seats}
}

func (f *fakeStore) addRoomNights(lodgingID string, from time.Time, nights, rooms int) {
    f.mu.Lock()
    defer f.mu.Unlock()
    grid, ok := f.state.nights[lodgingID]
    if !ok {
        grid = map[string]*model.RoomNight{}
        f.state.nights[lodgingID] = grid
    }
    for i := 0; i < nights; i++ {
        night := dateOnly(from).AddDate(0, 0, i)
        grid[night.Format("2006-01-02")] = &model.RoomNight{
            LodgingOptionID: lodgingID,
            Night:           night,
            TotalRooms:      rooms,
            AvailableRooms:  rooms,
        }
    }
}

func (f *fakeStore) flightSeats(id string) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.state.flights[id].AvailableSeats
}

func (f *fakeStore) roomsLeft(lodgingID string, night time.Time) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.state.nights[lodgingID][dateOnly(night).Format("2006-01-02")].AvailableRooms
}

func (f *fakeStore) setSequence(prefix string, n uint64) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.state.seqs[prefix] = n
}

func (s *fakeState) clone() *fakeState {
    out := &fakeState{
        seqs:     map[string]uint64{},
        flights:  map[string]*model.FlightInventory{},
        nights:   map[string]map[string]*model.RoomNight{},
        bookings: map[string]*model.Booking{},
        nextID:   s.nextID,
    }
    for k, v := range s.seqs {
        out.seqs[k] = v
    }
    for k, v := range s.flights {
        cp := *v
        out.flights[k] = &cp
    }
    for k, grid := range s.nights {
        g := map[string]*model.RoomNight{}
        for night, row := range grid {
            cp := *row
            g[night] = &cp
        }
        out.nights[k] = g
    }
    for k, b := range s.bookings {
        out.bookings[k] = cloneBooking(b)
    }
    return out
}

func cloneBooking(b *model.Booking) *model.Booking {
    cp := *b
    if b.ExpiresAt != nil {
        t := *b.ExpiresAt
        cp.ExpiresAt = &t
    }
    if b.PaymentRef != nil {
        r := *b.PaymentRef
        cp.PaymentRef = &r
    }
    cp.Lines = append([]model.BookingLine(nil), b.Lines...)
    cp.Passengers = append([]model.Passenger(nil), b.Passengers...)
    return &cp
}

type fakeTx struct {
    state *fakeState
}

func (t *fakeTx) NextReservationCode(_ context.Context, prefix string) (string, error) {
    var maxIssued uint64
    for code := range t.state.bookings {
        if !strings.HasPrefix(code, prefix+"-") {
            continue
        }
        if n, err := strconv.ParseUint(code[len(prefix)+1:], 10, 64); err == nil && n > maxIssued {
            maxIssued = n
        }
    }
    cur := t.state.seqs[prefix]
    if maxIssued > cur {
        cur = maxIssued
    }
    next := cur + 1
    code := fmt.Sprintf("%s-%04d", prefix, next)
    if _, exists := t.state.bookings[code]; exists {
        return "", fmt.Errorf("code %s already issued: %w", code, store.ErrSequenceCorruption)
    }
    t.state.seqs[prefix] = next
    return code, nil
}

func (t *fakeTx) ReserveFlightSeats(_ context.Context, flightOptionID string, seats int) error {
    row, ok := t.state.flights[flightOptionID]
    if !ok {
        return fmt.Errorf("flight option %s: %w", flightOptionID, store.ErrNotFound)
    }
    if row.AvailableSeats < seats {
        return fmt.Errorf("flight option %s, %d seats: %w", flightOptionID, seats, store.ErrInsufficientInventory)
    }
    row.AvailableSeats -= seats
    return nil
}

func (t *fakeTx) ReleaseFlightSeats(_ context.Context, flightOptionID string, seats int) error {
    row, ok := t.state.flights[flightOptionID]
    if !ok {
        return fmt.Errorf("flight option %s: %w", flightOptionID, store.ErrNotFound)
    }
    row.AvailableSeats += seats
    return nil
}

func (t *fakeTx) ReserveRoomNights(_ context.Context, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error {
    grid := t.state.nights[lodgingOptionID]
    for night := dateOnly(checkIn); night.Before(dateOnly(checkOut)); night = night.AddDate(0, 0, 1) {
        row, ok := grid[night.Format("2006-01-02")]
        if !ok || row.AvailableRooms < rooms {
            return fmt.Errorf("lodging option %s night %s, %d rooms: %w",
                lodgingOptionID, night.Format("2006-01-02"), rooms, store.ErrInsufficientInventory)
        }
        row.AvailableRooms -= rooms
        row.BookedRooms += rooms
    }
    return nil
}

func (t *fakeTx) ReleaseRoomNights(_ context.Context, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error {
    grid := t.state.nights[lodgingOptionID]
    for night := dateOnly(checkIn); night.Before(dateOnly(checkOut)); night = night.AddDate(0, 0, 1) {
        row, ok := grid[night.Format("2006-01-02")]
        if !ok {
            return fmt.Errorf("lodging option %s night %s: %w", lodgingOptionID, night.Format("2006-01-02"), store.ErrNotFound)
        }
        row.AvailableRooms += rooms
        row.BookedRooms -= rooms
    }
    return nil
}

func (t *fakeTx) InsertBooking(_ context.Context, b *model.Booking) error {
    t.state.nextID++
    b.ID = t.state.nextID
    b.CreatedAt = time.Now().UTC()
    b.UpdatedAt = b.CreatedAt
    t.state.bookings[b.ReservationCode] = cloneBooking(b)
    return nil
}

func (t *fakeTx) InsertLines(_ context.Context, bookingID uint64, lines []model.BookingLine) error {
    b, err := t.byID(bookingID)
    if err != nil {
        return err
    }
    for _, l := range lines {
        t.state.nextID++
        l.ID = t.state.nextID
        l.BookingID = bookingID
        b.Lines = append(b.Lines, l)
    }
    return nil
}

func (t *fakeTx) InsertPassengers(_ context.Context, bookingID uint64, passengers []model.Passenger) error {
    b, err := t.byID(bookingID)
    if err != nil {
        return err
    }
    for _, p := range passengers {
        t.state.nextID++
        p.ID = t.state.nextID
        p.BookingID = bookingID
        b.Passengers = append(b.Passengers, p)
    }
    return nil
}

func (t *fakeTx) BookingByCode(_ context.Context, code string) (*model.Booking, error) {
    b, ok := t.state.bookings[code]
    if !ok {
        return nil, fmt.Errorf("booking %s: %w", code, store.ErrNotFound)
    }
    return cloneBooking(b), nil
}

func (t *fakeTx) UpdateBookingStatus(_ context.Context, bookingID uint64, status model.BookingStatus, expiresAt *time.Time) error {
    b, err := t.byID(bookingID)
    if err != nil {
        return err
    }
    b.Status = status
    b.ExpiresAt = expiresAt
    b.UpdatedAt = time.Now().UTC()
    return nil
}

func (t *fakeTx) SetPaymentRef(_ context.Context, bookingID uint64, ref string) error {
    b, err := t.byID(bookingID)
    if err != nil {
        return err
    }
    b.PaymentRef = &ref
    return nil
}

func (t *fakeTx) ExpiredHoldCodes(_ context.Context, now time.Time, limit int) ([]string, error) {
    var codes []string
    for code, b := range t.state.bookings {
        if b.Status == model.StatusHold && b.ExpiresAt != nil && b.ExpiresAt.Before(now) {
            codes = append(codes, code)
        }
    }
    sort.Strings(codes)
    if len(codes) > limit {
        codes = codes[:limit]
    }
    return codes, nil
}

func (t *fakeTx) byID(id uint64) (*model.Booking, error) {
    for _, b := range t.state.bookings {
        if b.ID == id {
            return b, nil
        }
    }
    return nil, fmt.Errorf("booking id %d: %w", id, store.ErrNotFound)
}

// fakePublisher records published events instead of talking to a broker.
type fakePublisher struct {
    mu     sync.Mutex
    events []queue.BookingStatusEvent
}

func (p *fakePublisher) PublishBookingStatus(_ context.Context, event queue.BookingStatusEvent) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, event)
    return nil
}

func (p *fakePublisher) recorded() []queue.BookingStatusEvent {
    p.mu.Lock()
    defer p.mu.Unlock()
    return append([]queue.BookingStatusEvent(nil), p.events...)
}
