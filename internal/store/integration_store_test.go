package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
)

func TestIntegrationStore_FetchStatus(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{status: func(ctx context.Context) (*domain.IntegrationStatus, error) {
		return &domain.IntegrationStatus{Connected: true, Username: "octocat", IntegrationDate: &since}, nil
	}}
	s := NewIntegrationStore(src, nil)

	s.FetchStatus(context.Background())

	assert.True(t, s.Connected())
	assert.Equal(t, "octocat", s.Status().Data().Username)
	assert.Equal(t, StatusReady, s.Status().Snapshot().Status)
}

func TestIntegrationStore_AnyFailureMeansNotAuthenticated(t *testing.T) {
	failures := []error{
		apperrors.NewAuthRequiredError("session expired"),
		apperrors.NewNetworkError("request failed", fmt.Errorf("timeout")),
		fmt.Errorf("unexpected"),
	}
	for _, failure := range failures {
		src := &fakeSource{status: func(ctx context.Context) (*domain.IntegrationStatus, error) {
			return nil, failure
		}}
		s := NewIntegrationStore(src, nil)

		s.FetchStatus(context.Background())

		snap := s.Status().Snapshot()
		assert.Equal(t, StatusError, snap.Status)
		assert.Equal(t, NotAuthenticatedMessage, snap.Error)
		assert.False(t, s.Connected())
	}
}

func TestIntegrationStore_Remove(t *testing.T) {
	removeErr := error(nil)
	src := &fakeSource{
		status: func(ctx context.Context) (*domain.IntegrationStatus, error) {
			return &domain.IntegrationStatus{Connected: true, Username: "octocat"}, nil
		},
		remove: func(ctx context.Context) error { return removeErr },
	}
	s := NewIntegrationStore(src, nil)
	s.FetchStatus(context.Background())

	removeErr = fmt.Errorf("backend down")
	s.Remove(context.Background())
	assert.True(t, s.Connected(), "a failed removal keeps the account connected")
	assert.Equal(t, "Failed to remove integration", s.Status().Snapshot().Error)

	removeErr = nil
	s.Remove(context.Background())
	assert.False(t, s.Connected())
	assert.Empty(t, s.Status().Snapshot().Error)
}

func TestIntegrationStore_AuthURL(t *testing.T) {
	s := NewIntegrationStore(&fakeSource{}, nil)
	assert.Equal(t, "http://backend/auth/github", s.AuthURL())
}
