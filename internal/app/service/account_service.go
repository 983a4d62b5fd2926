package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type RegisterUserInput struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// ProfileUpdate carries the profile fields to change; nil leaves a field as is.
type ProfileUpdate struct {
	DateOfBirth            *time.Time
	PreferredPaymentMethod *string
}

type AddressInput struct {
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	IsDefault    bool
}

type AccountService interface {
	RegisterUser(ctx context.Context, input RegisterUserInput) (*model.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*model.CustomerProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*model.CustomerProfile, error)
	AdjustLoyaltyPoints(ctx context.Context, userID uuid.UUID, delta int) (*model.CustomerProfile, error)

	ListAddresses(ctx context.Context, userID uuid.UUID) ([]model.Address, error)
	CreateAddress(ctx context.Context, userID uuid.UUID, input AddressInput) (*model.Address, error)
	UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*model.Address, error)
	SetDefaultAddress(ctx context.Context, userID, addressID uuid.UUID) error
	DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error
}

type accountService struct {
	userRepo    repository.UserRepository
	addressRepo repository.AddressRepository
	db          *gorm.DB
}

func NewAccountService(
	userRepo repository.UserRepository,
	addressRepo repository.AddressRepository,
	db *gorm.DB,
) AccountService {
	return &accountService{
		userRepo:    userRepo,
		addressRepo: addressRepo,
		db:          db,
	}
}

func (s *accountService) RegisterUser(ctx context.Context, input RegisterUserInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !validEmail(email) {
		return nil, apperrors.NewValidation("email", "must be a valid email address")
	}

	logger.Info("Registering user", map[string]interface{}{
		"email": email,
	})

	user := &model.User{
		Email:     email,
		Phone:     strings.TrimSpace(input.Phone),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}

	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		if err := users.Create(ctx, user); err != nil {
			return apperrors.ClassifyDBError(err, "user", email)
		}
		user.Profile = &model.CustomerProfile{UserID: user.ID}
		if err := tx.WithContext(ctx).Create(user.Profile).Error; err != nil {
			return apperrors.ClassifyDBError(err, "customer_profile", user.ID)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			logger.Warn("Registration rejected: email already in use", map[string]interface{}{
				"email": email,
			})
		}
		return nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, nil
}

func (s *accountService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "user", userID)
	}
	return user, nil
}

func (s *accountService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.CustomerProfile, error) {
	profile, err := s.userRepo.FindProfile(ctx, userID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "customer_profile", userID)
	}
	return profile, nil
}

func (s *accountService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*model.CustomerProfile, error) {
	profile, err := s.userRepo.FindProfile(ctx, userID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "customer_profile", userID)
	}

	if update.DateOfBirth != nil {
		if update.DateOfBirth.After(time.Now()) {
			return nil, apperrors.NewValidation("date_of_birth", "must be in the past")
		}
		profile.DateOfBirth = update.DateOfBirth
	}
	if update.PreferredPaymentMethod != nil {
		method := strings.TrimSpace(*update.PreferredPaymentMethod)
		if len(method) > 50 {
			return nil, apperrors.NewValidation("preferred_payment_method", "is too long")
		}
		profile.PreferredPaymentMethod = method
	}

	if err := s.userRepo.UpdateProfile(ctx, profile); err != nil {
		logger.Error("Failed to update profile", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return profile, nil
}

func (s *accountService) AdjustLoyaltyPoints(ctx context.Context, userID uuid.UUID, delta int) (*model.CustomerProfile, error) {
	if delta == 0 {
		return nil, apperrors.NewValidation("delta", "must not be zero")
	}

	ok, err := s.userRepo.AdjustLoyaltyPoints(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		profile, findErr := s.userRepo.FindProfile(ctx, userID)
		if findErr != nil {
			return nil, apperrors.ClassifyDBError(findErr, "customer_profile", userID)
		}
		logger.Warn("Loyalty adjustment rejected: balance would go negative", map[string]interface{}{
			"user_id": userID,
			"balance": profile.LoyaltyPoints,
			"delta":   delta,
		})
		return nil, apperrors.NewValidation("delta", "loyalty points cannot go negative")
	}

	logger.Info("Loyalty points adjusted", map[string]interface{}{
		"user_id": userID,
		"delta":   delta,
	})
	return s.userRepo.FindProfile(ctx, userID)
}

func (s *accountService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	addresses, err := s.addressRepo.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error("Failed to fetch user addresses", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return addresses, nil
}

func validateAddress(input AddressInput) error {
	required := []struct {
		field string
		value string
		max   int
	}{
		{"full_name", input.FullName, 100},
		{"phone", input.Phone, 20},
		{"address_line1", input.AddressLine1, 255},
		{"city", input.City, 100},
		{"state", input.State, 100},
		{"postal_code", input.PostalCode, 20},
		{"country", input.Country, 100},
	}
	for _, r := range required {
		if err := requireText(r.field, r.value, r.max); err != nil {
			return err
		}
	}
	if len(input.AddressLine2) > 255 {
		return apperrors.NewValidation("address_line2", "is too long")
	}
	return nil
}

func (a AddressInput) apply(address *model.Address) {
	address.FullName = strings.TrimSpace(a.FullName)
	address.Phone = strings.TrimSpace(a.Phone)
	address.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	address.AddressLine2 = strings.TrimSpace(a.AddressLine2)
	address.City = strings.TrimSpace(a.City)
	address.State = strings.TrimSpace(a.State)
	address.PostalCode = strings.TrimSpace(a.PostalCode)
	address.Country = strings.TrimSpace(a.Country)
}

func (s *accountService) CreateAddress(ctx context.Context, userID uuid.UUID, input AddressInput) (*model.Address, error) {
	if err := validateAddress(input); err != nil {
		return nil, err
	}

	logger.Info("Creating address", map[string]interface{}{
		"user_id":    userID,
		"is_default": input.IsDefault,
	})

	address := &model.Address{UserID: userID}
	input.apply(address)

	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		addresses := s.addressRepo.WithTx(tx)

		// The user row serializes default-address changes for this owner.
		if _, err := users.LockByID(ctx, userID); err != nil {
			return apperrors.ClassifyDBError(err, "user", userID)
		}

		existing, err := addresses.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		address.IsDefault = input.IsDefault || len(existing) == 0
		if address.IsDefault {
			if err := addresses.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		if err := addresses.Create(ctx, address); err != nil {
			return apperrors.ClassifyDBError(err, "address", userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Address created successfully", map[string]interface{}{
		"address_id": address.ID,
		"user_id":    userID,
	})
	return address, nil
}

func (s *accountService) ownedAddress(ctx context.Context, repo repository.AddressRepository, userID, addressID uuid.UUID) (*model.Address, error) {
	address, err := repo.FindByID(ctx, addressID)
	if err != nil {
		return nil, apperrors.ClassifyDBError(err, "address", addressID)
	}
	if address.UserID != userID {
		logger.Warn("Address belongs to another user", map[string]interface{}{
			"user_id":    userID,
			"address_id": addressID,
		})
		return nil, apperrors.NewNotFound("address", addressID)
	}
	return address, nil
}

func (s *accountService) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*model.Address, error) {
	if err := validateAddress(input); err != nil {
		return nil, err
	}

	var address *model.Address
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		addresses := s.addressRepo.WithTx(tx)

		var err error
		address, err = s.ownedAddress(ctx, addresses, userID, addressID)
		if err != nil {
			return err
		}
		input.apply(address)
		if err := addresses.Update(ctx, address); err != nil {
			return err
		}
		if input.IsDefault && !address.IsDefault {
			if _, err := s.userRepo.WithTx(tx).LockByID(ctx, userID); err != nil {
				return apperrors.ClassifyDBError(err, "user", userID)
			}
			if err := addresses.ClearDefault(ctx, userID); err != nil {
				return err
			}
			if _, err := addresses.MarkDefault(ctx, userID, addressID); err != nil {
				return err
			}
			address.IsDefault = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Address updated successfully", map[string]interface{}{
		"address_id": addressID,
		"user_id":    userID,
	})
	return address, nil
}

// SetDefaultAddress clears the owner's current default and marks addressID in
// one transaction, so exactly one default remains even under concurrent calls.
func (s *accountService) SetDefaultAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		addresses := s.addressRepo.WithTx(tx)

		if _, err := users.LockByID(ctx, userID); err != nil {
			return apperrors.ClassifyDBError(err, "user", userID)
		}
		if err := addresses.ClearDefault(ctx, userID); err != nil {
			return err
		}
		ok, err := addresses.MarkDefault(ctx, userID, addressID)
		if err != nil {
			return apperrors.ClassifyDBError(err, "address", addressID)
		}
		if !ok {
			return apperrors.NewNotFound("address", addressID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Default address set", map[string]interface{}{
		"user_id":    userID,
		"address_id": addressID,
	})
	return nil
}

func (s *accountService) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	err := db.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		addresses := s.addressRepo.WithTx(tx)

		if _, err := s.ownedAddress(ctx, addresses, userID, addressID); err != nil {
			return err
		}
		refs, err := addresses.CountOrderReferences(ctx, addressID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return apperrors.NewConflict("address", "referenced_by_order", addressID)
		}
		if err := addresses.Delete(ctx, addressID); err != nil {
			return apperrors.ClassifyDBError(err, "address", addressID)
		}
		return nil
	})
	if err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			logger.Warn("Address delete rejected: referenced by orders", map[string]interface{}{
				"address_id": addressID,
			})
		}
		return err
	}

	logger.Info("Address deleted", map[string]interface{}{
		"address_id": addressID,
		"user_id":    userID,
	})
	return nil
}
