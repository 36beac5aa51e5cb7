package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/payment"
	"go-marketplace-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Privilege{},
		&model.Role{},
		&model.User{},
		&model.Product{},
		&model.InventoryRecord{},
		&model.Order{},
		&model.OrderItem{},
		&model.StockMovement{},
	))
	return db
}

// testStack wires the services against one sqlite database.
type testStack struct {
	db        *gorm.DB
	orders    repository.OrderRepository
	products  repository.ProductRepository
	inventory repository.InventoryRepository
	movements repository.MovementRepository
	users     repository.UserRepository
	events    *recordingPublisher

	inventorySvc InventoryService
	orderSvc     OrderService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := setupTestDB(t)
	s := &testStack{
		db:        db,
		orders:    repository.NewOrderRepo(db),
		products:  repository.NewProductRepo(db),
		inventory: repository.NewInventoryRepo(db),
		movements: repository.NewMovementRepo(db),
		users:     repository.NewUserRepo(db),
		events:    &recordingPublisher{},
	}
	s.inventorySvc = NewInventoryService(s.inventory, s.movements, s.products, db, s.events, nil, nil)
	s.orderSvc = NewOrderService(s.orders, s.products, s.inventory, s.users, s.inventorySvc, db, decimal.NewFromInt(5), s.events, nil)
	return s
}

func (s *testStack) seedProduct(t *testing.T, name string, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{SKU: "SKU-" + uuid.NewString()[:8], Name: name, Price: price}
	require.NoError(t, s.db.Create(p).Error)
	require.NoError(t, s.db.Create(&model.InventoryRecord{ProductID: p.ID, Stock: stock}).Error)
	return p
}

func (s *testStack) seedVariant(t *testing.T, productID uuid.UUID, v model.Variant, stock, reserved int) {
	t.Helper()
	require.NoError(t, s.db.Create(&model.InventoryRecord{
		ProductID: productID, Size: v.Size, Color: v.Color, Stock: stock, Reserved: reserved,
	}).Error)
}

func (s *testStack) seedUser(t *testing.T, email, roleCode string) *model.User {
	t.Helper()
	role := model.Role{Code: roleCode, Name: roleCode}
	require.NoError(t, s.db.Where("code = ?", roleCode).FirstOrCreate(&role).Error)
	u := &model.User{Email: email, FullName: email, RoleID: &role.ID, IsActive: true}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, s.db.Create(u).Error)
	u.Role = &role
	return u
}

// seedOrder inserts an order and its lines directly, bypassing the service.
func (s *testStack) seedOrder(t *testing.T, status model.OrderStatus, ref string, lines ...model.OrderItem) *model.Order {
	t.Helper()
	o := &model.Order{SaleType: model.SaleOnline, Status: status, PaymentReference: ref, CustomerName: "Jane"}
	o.ID = uuid.New()
	for i := range lines {
		lines[i].OrderID = o.ID
		o.TotalAmount += lines[i].LineTotal()
	}
	require.NoError(t, s.orders.Create(context.Background(), o))
	require.NoError(t, s.orders.CreateItems(context.Background(), lines))
	o.Items = lines
	return o
}

func (s *testStack) record(t *testing.T, productID uuid.UUID, v model.Variant) *model.InventoryRecord {
	t.Helper()
	rec, err := s.inventory.Find(context.Background(), productID, v)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func (s *testStack) order(t *testing.T, id uuid.UUID) *model.Order {
	t.Helper()
	o, err := s.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func line(p *model.Product, qty int) model.OrderItem {
	return model.OrderItem{ProductID: p.ID, ProductName: p.Name, ProductSKU: p.SKU, Quantity: qty, UnitPrice: p.Price}
}

func adminActor(u *model.User) Actor {
	return Actor{ID: u.ID, Name: u.FullName, Email: u.Email, Role: model.RoleAdmin}
}

func actorFor(u *model.User) Actor {
	return Actor{ID: u.ID, Name: u.FullName, Email: u.Email, Role: u.RoleCode()}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type stubProvider struct {
	calls int
	err   error
	ref   string
}

func (p *stubProvider) Initiate(_ context.Context, req payment.Request) (*payment.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	ref := p.ref
	if ref == "" {
		ref = "REF-" + req.OrderID.String()[:8]
	}
	return &payment.Result{Reference: ref, Message: "ok"}, nil
}

// memoryIdempotency mimics the redis SET NX semantics.
type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]bool{}}
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}
