package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// memStore backs the in-memory repositories below. Finders hand out copies so
// a service has to go through an update method to change stored state.
type memStore struct {
	mu            sync.Mutex
	seq           uint64
	customers     map[string]*model.Customer
	listings      map[uint64]*model.Listing
	favorites     []model.Favorite
	conversations map[uint64]*model.Conversation
	negotiations  map[uint64]*model.NegotiationRequest
	transactions  map[uint64]*model.Transaction
	returns       map[uint64]*model.Return
	ledger        []model.PointsLedgerEntry
}

func newMemStore() *memStore {
	return &memStore{
		customers:     map[string]*model.Customer{},
		listings:      map[uint64]*model.Listing{},
		conversations: map[uint64]*model.Conversation{},
		negotiations:  map[uint64]*model.NegotiationRequest{},
		transactions:  map[uint64]*model.Transaction{},
		returns:       map[uint64]*model.Return{},
	}
}

func (m *memStore) next() uint64 {
	m.seq++
	return m.seq
}

func (m *memStore) addCustomer(uid string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[uid] = &model.Customer{UID: uid, DisplayName: uid, PointsBalance: balance}
}

func (m *memStore) addListing(seller string, kind model.ListingKind, price string) *model.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := &model.Listing{
		ID:        m.next(),
		SellerUID: seller,
		Title:     "Book " + seller,
		Price:     decimal.RequireFromString(price),
		Kind:      kind,
		State:     model.ListingStateActive,
	}
	m.listings[l.ID] = l
	return l
}

func (m *memStore) addFavorite(listingID uint64, uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favorites = append(m.favorites, model.Favorite{ListingID: listingID, CustomerUID: uid})
}

func (m *memStore) balance(uid string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[uid].PointsBalance
}

func (m *memStore) listingState(id uint64) model.ListingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id].State
}

func (m *memStore) negotiation(id uint64) model.NegotiationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.negotiations[id]
}

func (m *memStore) transaction(id uint64) model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.transactions[id]
}

func (m *memStore) ledgerFor(uid string) []model.PointsLedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PointsLedgerEntry
	for _, e := range m.ledger {
		if e.CustomerUID == uid {
			out = append(out, e)
		}
	}
	return out
}

type fakeCustomers struct{ m *memStore }

func (f fakeCustomers) Exists(_ context.Context, uid string) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	_, ok := f.m.customers[uid]
	return ok, nil
}

func (f fakeCustomers) FindByUID(_ context.Context, uid string) (*model.Customer, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.customers[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeCustomers) Create(_ context.Context, c *model.Customer) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	cp := *c
	f.m.customers[c.UID] = &cp
	return nil
}

type fakeListings struct{ m *memStore }

func (f fakeListings) Create(_ context.Context, l *model.Listing) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	l.ID = f.m.next()
	cp := *l
	f.m.listings[l.ID] = &cp
	return nil
}

func (f fakeListings) FindByID(_ context.Context, id uint64) (*model.Listing, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	l, ok := f.m.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (f fakeListings) SetState(_ context.Context, id uint64, state model.ListingState) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	l, ok := f.m.listings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.State = state
	return nil
}

type fakeFavorites struct{ m *memStore }

func (f fakeFavorites) ListByListing(_ context.Context, listingID uint64) ([]model.Favorite, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.Favorite
	for _, fav := range f.m.favorites {
		if fav.ListingID == listingID {
			out = append(out, fav)
		}
	}
	return out, nil
}

type fakeConversations struct{ m *memStore }

func (f fakeConversations) FindByID(_ context.Context, id uint64) (*model.Conversation, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeConversations) FindBetween(_ context.Context, listingID uint64, buyerUID, sellerUID string) (*model.Conversation, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, c := range f.m.conversations {
		if c.ListingID == listingID && c.BuyerUID == buyerUID && c.SellerUID == sellerUID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeConversations) Create(_ context.Context, cv *model.Conversation) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, c := range f.m.conversations {
		if c.ListingID == cv.ListingID && c.BuyerUID == cv.BuyerUID {
			return repository.ErrDuplicate
		}
	}
	cv.ID = f.m.next()
	cp := *cv
	f.m.conversations[cv.ID] = &cp
	return nil
}

type fakeNegotiations struct{ m *memStore }

func (f fakeNegotiations) Create(_ context.Context, r *model.NegotiationRequest) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	r.ID = f.m.next()
	cp := *r
	f.m.negotiations[r.ID] = &cp
	return nil
}

func (f fakeNegotiations) FindByID(_ context.Context, id uint64) (*model.NegotiationRequest, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	r, ok := f.m.negotiations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeNegotiations) LatestByConversation(_ context.Context, conversationID uint64) (*model.NegotiationRequest, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var latest *model.NegotiationRequest
	for _, r := range f.m.negotiations {
		if r.ConversationID == conversationID && (latest == nil || r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f fakeNegotiations) ListPendingBetween(_ context.Context, listingID uint64, uidA, uidB string) ([]model.NegotiationRequest, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.NegotiationRequest
	for _, r := range f.m.negotiations {
		if r.ListingID != listingID || r.State != model.NegotiationPending {
			continue
		}
		if (r.SenderUID == uidA && r.RecipientUID == uidB) || (r.SenderUID == uidB && r.RecipientUID == uidA) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f fakeNegotiations) UpdateState(_ context.Context, id uint64, from, to model.NegotiationState) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	r, ok := f.m.negotiations[id]
	if !ok || r.State != from {
		return 0, nil
	}
	r.State = to
	return 1, nil
}

type fakeTransactions struct{ m *memStore }

func (f fakeTransactions) Create(_ context.Context, t *model.Transaction) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, x := range f.m.transactions {
		if x.NegotiationRequestID == t.NegotiationRequestID {
			return repository.ErrDuplicate
		}
	}
	t.ID = f.m.next()
	cp := *t
	f.m.transactions[t.ID] = &cp
	return nil
}

func (f fakeTransactions) FindByID(_ context.Context, id uint64) (*model.Transaction, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	t, ok := f.m.transactions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f fakeTransactions) FindByNegotiation(_ context.Context, negotiationID uint64) (*model.Transaction, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, t := range f.m.transactions {
		if t.NegotiationRequestID == negotiationID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f fakeTransactions) UpdateState(_ context.Context, t *model.Transaction, from model.TransactionState) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	stored, ok := f.m.transactions[t.ID]
	if !ok || stored.State != from {
		return 0, nil
	}
	stored.State = t.State
	stored.ConcludedAt = t.ConcludedAt
	stored.CanceledAt = t.CanceledAt
	return 1, nil
}

func (f fakeTransactions) CreateReturn(_ context.Context, r *model.Return) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.returns[r.TransactionID]; ok {
		return repository.ErrDuplicate
	}
	r.ID = f.m.next()
	cp := *r
	f.m.returns[r.TransactionID] = &cp
	return nil
}

func (f fakeTransactions) FindReturnByTransaction(_ context.Context, transactionID uint64) (*model.Return, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	r, ok := f.m.returns[transactionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f fakeTransactions) ConfirmReturn(_ context.Context, r *model.Return) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	stored, ok := f.m.returns[r.TransactionID]
	if !ok || stored.Confirmed {
		return 0, nil
	}
	stored.Confirmed = true
	stored.SellerConfirmedAt = r.SellerConfirmedAt
	return 1, nil
}

type fakePoints struct{ m *memStore }

func (f fakePoints) Spend(_ context.Context, uid string, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.customers[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if c.PointsBalance < amount {
		return nil, repository.ErrInsufficientPoints
	}
	c.PointsBalance -= amount
	return f.append(uid, model.LedgerKindSpend, amount, transactionID), nil
}

func (f fakePoints) Grant(_ context.Context, uid string, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.customers[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c.PointsBalance += amount
	return f.append(uid, model.LedgerKindGrant, amount, transactionID), nil
}

func (f fakePoints) ListEntries(_ context.Context, uid string) ([]model.PointsLedgerEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []model.PointsLedgerEntry
	for _, e := range f.m.ledger {
		if e.CustomerUID == uid {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// append must be called with the store lock held.
func (f fakePoints) append(uid string, kind model.LedgerKind, amount int64, transactionID *uint64) *model.PointsLedgerEntry {
	e := model.PointsLedgerEntry{
		ID:            fmt.Sprintf("%020d", f.m.next()),
		CustomerUID:   uid,
		TransactionID: transactionID,
		Kind:          kind,
		Amount:        amount,
		OccurredAt:    time.Now(),
	}
	f.m.ledger = append(f.m.ledger, e)
	return &e
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type sentNotice struct {
	To   string
	Kind model.NotificationKind
	Msg  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (r *recordingNotifier) Notify(_ context.Context, recipientUID string, kind model.NotificationKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotice{To: recipientUID, Kind: kind, Msg: message})
}

func (r *recordingNotifier) List(context.Context, string, repository.NotificationFilter) ([]model.Notification, map[model.NotificationKind]int64, error) {
	return nil, nil, nil
}

func (r *recordingNotifier) MarkRead(context.Context, string, model.NotificationKind) (int64, error) {
	return 0, nil
}

func (r *recordingNotifier) to(uid string, kind model.NotificationKind) []sentNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNotice
	for _, n := range r.sent {
		if n.To == uid && n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	store        *memStore
	notifier     *recordingNotifier
	points       PointsService
	negotiations NegotiationService
	transactions TransactionService
}

func newFixture() *fixture {
	m := newMemStore()
	n := &recordingNotifier{}
	logger := zap.NewNop()
	points := NewPointsService(fakePoints{m}, fakeCustomers{m}, fakeTransactions{m}, fakeListings{m}, nil, logger)
	return &fixture{
		store:    m,
		notifier: n,
		points:   points,
		negotiations: NewNegotiationService(fakeNegotiations{m}, fakeListings{m}, fakeCustomers{m},
			fakeConversations{m}, fakeFavorites{m}, fakeTransactions{m}, n, passthroughTx{}, logger),
		transactions: NewTransactionService(fakeTransactions{m}, fakeNegotiations{m}, fakeListings{m},
			fakeCustomers{m}, points, n, passthroughTx{}, logger),
	}
}

// acceptedDeal walks a buyer offer on a fresh listing up to ACCEPTED.
func (f *fixture) acceptedDeal(ctx context.Context, kind model.ListingKind, amount string, buyerPoints int64) (*model.Listing, *model.NegotiationRequest) {
	f.store.addCustomer("seller", 0)
	f.store.addCustomer("buyer", buyerPoints)
	l := f.store.addListing("seller", kind, amount)
	in := CreateNegotiationInput{
		ListingID:      l.ID,
		ActorUID:       "buyer",
		ProposedAmount: decimal.RequireFromString(amount),
	}
	if kind == model.ListingKindRental {
		days := 7
		in.RentalDays = &days
	}
	req, err := f.negotiations.CreateRequest(ctx, in)
	if err != nil {
		panic(err)
	}
	req, err = f.negotiations.Accept(ctx, req.ID, "seller")
	if err != nil {
		panic(err)
	}
	return l, req
}
