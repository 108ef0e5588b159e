package service

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"paygate/config"
	"paygate/internal/auth"
	"paygate/internal/models"
	"paygate/internal/repository"
)

var (
	ErrEmailExists   = errors.New("email already registered")
	ErrInvalidCreds  = errors.New("invalid email or password")
	ErrInvalidWallet = errors.New("invalid payout wallet address")
)

// ProviderService handles the provider dashboard surface: registration,
// login, API listing management.
type ProviderService struct {
	cfg       *config.Config
	providers *repository.ProviderRepository
	apis      *repository.ApiRepository
}

func NewProviderService(cfg *config.Config, providers *repository.ProviderRepository, apis *repository.ApiRepository) *ProviderService {
	return &ProviderService{cfg: cfg, providers: providers, apis: apis}
}

func (s *ProviderService) Register(name, email, password, walletAddress string) (*models.Provider, string, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, "", ErrInvalidWallet
	}
	if _, err := s.providers.GetByEmail(email); err == nil {
		return nil, "", ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	p := &models.Provider{
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		WalletAddress: common.HexToAddress(walletAddress).Hex(),
		Active:        true,
		TotalEarnings: "0",
	}
	if err := s.providers.Create(p); err != nil {
		return nil, "", err
	}
	token, err := auth.GenerateToken(&s.cfg.JWT, p.ID, p.Email)
	if err != nil {
		return p, "", err
	}
	return p, token, nil
}

func (s *ProviderService) Login(email, password string) (*models.Provider, string, error) {
	p, err := s.providers.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCreds
	}
	token, err := auth.GenerateToken(&s.cfg.JWT, p.ID, p.Email)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// CreateApi validates pricing and registers a new listing owned by the
// provider. Endpoints are stored as given; the hidden and fallback endpoints
// are only ever used by the internal hop.
func (s *ProviderService) CreateApi(providerID uint, a *models.Api) error {
	if _, ok := models.ParseAmount(a.PricePerCall); !ok {
		return errors.New("price_per_call must be a non-negative integer string")
	}
	a.ProviderID = providerID
	a.Active = true
	a.TotalRevenue = "0"
	return s.apis.Create(a)
}
