package service

import (
	"context"

	"github.com/Raleighawesome/family-movies/internal/apperr"
	"github.com/Raleighawesome/family-movies/internal/model"
	"github.com/Raleighawesome/family-movies/internal/storage"

	"github.com/sirupsen/logrus"
)

// HouseholdService resolves which household the authenticated identity acts in.
type HouseholdService struct {
	storage storage.Storage
	log     logrus.FieldLogger
}

func NewHouseholdService(store storage.Storage, log logrus.FieldLogger) *HouseholdService {
	return &HouseholdService{storage: store, log: log}
}

// ResolveActiveHousehold returns nil without error when the identity has no
// membership yet or the membership tables do not exist.
func (s *HouseholdService) ResolveActiveHousehold(ctx context.Context, identity *model.Identity) (*model.HouseholdContext, error) {
	if identity == nil || identity.ID == "" {
		return nil, nil
	}

	membership, err := s.storage.FirstMembership(ctx, identity.ID)
	if err != nil {
		if apperr.Is(err, apperr.KindMissingSchema) {
			s.log.WithError(err).Debug("household tables missing, treating as no membership")
			return nil, nil
		}
		return nil, err
	}
	if membership == nil {
		return nil, nil
	}

	return &model.HouseholdContext{
		User:          *identity,
		MembershipID:  membership.ID,
		DisplayName:   membership.DisplayName,
		HouseholdID:   membership.HouseholdID,
		HouseholdName: membership.HouseholdName,
	}, nil
}

func (s *HouseholdService) RequireActiveHousehold(ctx context.Context, identity *model.Identity) (*model.HouseholdContext, error) {
	hh, err := s.ResolveActiveHousehold(ctx, identity)
	if err != nil {
		return nil, err
	}
	if hh == nil {
		return nil, apperr.NoHousehold("household.Require")
	}
	return hh, nil
}

func (s *HouseholdService) ListMembers(ctx context.Context, householdID string) ([]model.HouseholdMember, error) {
	members, err := s.storage.ListMembers(ctx, householdID)
	if err != nil {
		if apperr.Is(err, apperr.KindMissingSchema) {
			return []model.HouseholdMember{}, nil
		}
		return nil, err
	}
	return members, nil
}

// EnsureBootstrap gives the identity a household on first start when a
// bootstrap name is configured. It returns the resolved context either way.
func (s *HouseholdService) EnsureBootstrap(ctx context.Context, identity *model.Identity, name, displayName string) (*model.HouseholdContext, error) {
	hh, err := s.ResolveActiveHousehold(ctx, identity)
	if err != nil || hh != nil || name == "" {
		return hh, err
	}

	if displayName == "" {
		displayName = identity.Username
	}
	if _, err := s.storage.CreateHousehold(ctx, name, storage.NewMember{
		UserID:      identity.ID,
		DisplayName: displayName,
		Email:       identity.Email,
	}); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"household_name": name,
		"user_id":        identity.ID,
	}).Info("bootstrapped household")

	return s.ResolveActiveHousehold(ctx, identity)
}
