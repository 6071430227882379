package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
)

type CustomerService interface {
	// Register creates the customer row for uid on first sign-in. Calling it
	// again returns the existing row unchanged.
	Register(ctx context.Context, uid, displayName string) (*model.Customer, bool, error)
	Get(ctx context.Context, uid string) (*model.Customer, error)
}

type customerService struct {
	repo repository.CustomerRepository
}

func NewCustomerService(repo repository.CustomerRepository) CustomerService {
	return &customerService{repo: repo}
}

func (s *customerService) Register(ctx context.Context, uid, displayName string) (*model.Customer, bool, error) {
	if uid == "" {
		return nil, false, Validation("uid is required")
	}
	if c, err := s.repo.FindByUID(ctx, uid); err == nil {
		return c, false, nil
	}
	name := strings.TrimSpace(displayName)
	if len(name) > 120 {
		return nil, false, Validation("display name is too long")
	}
	c := &model.Customer{UID: uid, DisplayName: name}
	if err := s.repo.Create(ctx, c); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, false, Unexpected(err)
		}
		existing, err := s.repo.FindByUID(ctx, uid)
		if err != nil {
			return nil, false, Unexpected(err)
		}
		return existing, false, nil
	}
	return c, true, nil
}

func (s *customerService) Get(ctx context.Context, uid string) (*model.Customer, error) {
	c, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, notFoundOr(err, "customer not found")
	}
	return c, nil
}
