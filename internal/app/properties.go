package app

import (
	"context"
	"fmt"
	"strings"

	"rental_portal/internal/domain"
)

type Property struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type PropertyService struct{ reg domain.PropertyRegistry }

func NewPropertyService(r domain.PropertyRegistry) *PropertyService {
	return &PropertyService{reg: r}
}

// Register creates or renames a property so slots and applications can
// reference it.
func (s *PropertyService) Register(ctx context.Context, caller domain.Caller, id, address string) (Property, error) {
	if !caller.Admin {
		return Property{}, fmt.Errorf("%w: registering properties requires an administrator", domain.ErrForbidden)
	}
	id, address = strings.TrimSpace(id), strings.TrimSpace(address)
	if id == "" || address == "" {
		return Property{}, fmt.Errorf("%w: property id and address are required", domain.ErrValidation)
	}
	if err := s.reg.UpsertProperty(ctx, id, address); err != nil {
		return Property{}, err
	}
	return Property{ID: id, Address: address}, nil
}

func (s *PropertyService) Get(ctx context.Context, id string) (Property, error) {
	addr, err := s.reg.PropertyAddress(ctx, id)
	if err != nil {
		return Property{}, err
	}
	return Property{ID: id, Address: addr}, nil
}
