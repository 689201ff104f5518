package usersvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
)

// AddressDTO is the external view of a shipping address.
type AddressDTO struct {
	ID         int64     `json:"id"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddressInput captures a create or full-update request.
type AddressInput struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	IsDefault  bool
}

func (in AddressInput) validate() error {
	if strings.TrimSpace(in.Line1) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "line1 is required")
	}
	if strings.TrimSpace(in.City) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "city is required")
	}
	if strings.TrimSpace(in.PostalCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "postal_code is required")
	}
	if strings.TrimSpace(in.Country) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "country is required")
	}
	return nil
}

// CreateAddress stores a new address. When the owning profile has not
// replicated yet, a minimal one is bootstrapped first so the foreign
// relationship holds locally.
func (s *Service) CreateAddress(ctx context.Context, userID int64, input AddressInput) (*AddressDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindProfile(ctx, userID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
		}
		if err := s.repo.UpsertProfile(ctx, &models.UserProfile{ID: userID}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap profile")
		}
		s.requestSync(ctx, userID)
	}

	if input.IsDefault {
		if err := s.addresses.ClearDefaultAddress(ctx, userID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
	}

	address := &models.Address{
		UserID:     userID,
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      strings.TrimSpace(input.Line2),
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.TrimSpace(input.Country),
		IsDefault:  input.IsDefault,
	}
	if err := s.addresses.CreateAddress(ctx, address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}

	if err := s.publish(ctx, events.TopicUserAddressCreated, events.UserAddressCreated{
		UserID:    userID,
		AddressID: address.ID,
		City:      address.City,
		Country:   address.Country,
		Timestamp: s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	dto := toAddressDTO(address)
	return &dto, nil
}

// ListAddresses returns every address the caller owns.
func (s *Service) ListAddresses(ctx context.Context, userID int64) ([]AddressDTO, error) {
	rows, err := s.addresses.ListAddresses(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	dtos := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, toAddressDTO(&rows[i]))
	}
	return dtos, nil
}

// UpdateAddress replaces an address the caller owns.
func (s *Service) UpdateAddress(ctx context.Context, userID, addressID int64, input AddressInput) (*AddressDTO, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	address, err := s.addresses.FindAddress(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}

	if input.IsDefault && !address.IsDefault {
		if err := s.addresses.ClearDefaultAddress(ctx, userID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
	}

	address.Line1 = strings.TrimSpace(input.Line1)
	address.Line2 = strings.TrimSpace(input.Line2)
	address.City = strings.TrimSpace(input.City)
	address.State = strings.TrimSpace(input.State)
	address.PostalCode = strings.TrimSpace(input.PostalCode)
	address.Country = strings.TrimSpace(input.Country)
	address.IsDefault = input.IsDefault

	if err := s.addresses.SaveAddress(ctx, address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
	}

	if err := s.publish(ctx, events.TopicUserAddressUpdated, events.UserAddressUpdated{
		UserID:    userID,
		AddressID: address.ID,
		Timestamp: s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	dto := toAddressDTO(address)
	return &dto, nil
}

// DeleteAddress removes an address the caller owns.
func (s *Service) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	deleted, err := s.addresses.DeleteAddress(ctx, addressID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}

	return s.publish(ctx, events.TopicUserAddressDeleted, events.UserAddressDeleted{
		UserID:    userID,
		AddressID: addressID,
		Timestamp: s.now().UTC(),
	})
}

func toAddressDTO(address *models.Address) AddressDTO {
	return AddressDTO{
		ID:         address.ID,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		IsDefault:  address.IsDefault,
		CreatedAt:  address.CreatedAt,
	}
}
