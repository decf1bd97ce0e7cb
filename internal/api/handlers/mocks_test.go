package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"devbills/backend/internal/models"
)

// --- Mocks ---

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	args := m.Called(ctx, name, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockInvoiceService implements services.IInvoiceService
type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) Save(ctx context.Context, owner *primitive.ObjectID, draft models.InvoiceDraft) (*models.StoredInvoice, error) {
	args := m.Called(ctx, owner, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoredInvoice), args.Error(1)
}

func (m *MockInvoiceService) History(ctx context.Context, owner *primitive.ObjectID, query string) ([]models.InvoiceView, int, error) {
	args := m.Called(ctx, owner, query)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.InvoiceView), args.Int(1), args.Error(2)
}

func (m *MockInvoiceService) FindByID(ctx context.Context, id primitive.ObjectID) (*models.StoredInvoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoredInvoice), args.Error(1)
}

func (m *MockInvoiceService) ViewByID(ctx context.Context, id primitive.ObjectID) (*models.InvoiceView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InvoiceView), args.Error(1)
}

func (m *MockInvoiceService) Delete(ctx context.Context, id primitive.ObjectID, owner *primitive.ObjectID) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

func (m *MockInvoiceService) SetPDFKey(ctx context.Context, id primitive.ObjectID, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

// MockShopService implements services.IShopService
type MockShopService struct {
	mock.Mock
}

func (m *MockShopService) Get(ctx context.Context, ownerKey string) (*models.ShopSettings, error) {
	args := m.Called(ctx, ownerKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShopSettings), args.Error(1)
}

func (m *MockShopService) Update(ctx context.Context, ownerKey string, settings models.ShopSettings) error {
	args := m.Called(ctx, ownerKey, settings)
	return args.Error(0)
}

func (m *MockShopService) SetLogoKey(ctx context.Context, ownerKey string, logoKey string) error {
	args := m.Called(ctx, ownerKey, logoKey)
	return args.Error(0)
}

// MockSessionService implements services.ISessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Products(ctx context.Context, ownerKey string) ([]models.Product, error) {
	args := m.Called(ctx, ownerKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockSessionService) AddProduct(ctx context.Context, ownerKey string, p models.Product) ([]models.Product, error) {
	args := m.Called(ctx, ownerKey, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockSessionService) RemoveProduct(ctx context.Context, ownerKey string, index int) ([]models.Product, error) {
	args := m.Called(ctx, ownerKey, index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockSessionService) Preview(ctx context.Context, ownerKey string) (*models.PreviewPayload, error) {
	args := m.Called(ctx, ownerKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreviewPayload), args.Error(1)
}

func (m *MockSessionService) PutPreview(ctx context.Context, ownerKey string, p models.PreviewPayload) (*models.PreviewPayload, error) {
	args := m.Called(ctx, ownerKey, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreviewPayload), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) Upload(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockS3Storage) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockS3Storage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockS3Storage) GeneratePresignedGetURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockS3Storage) InvoicePDFKey(invoiceID string) string {
	args := m.Called(invoiceID)
	return args.String(0)
}

func (m *MockS3Storage) LogoKey(ownerKey, filename string) string {
	args := m.Called(ownerKey, filename)
	return args.String(0)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
