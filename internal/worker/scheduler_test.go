package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/challengeties/rewards/internal/model"
	"github.com/challengeties/rewards/internal/repository/memory"
	"github.com/challengeties/rewards/internal/service"
)

type fakeReconciler struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	ran   chan struct{}
}

func (f *fakeReconciler) Reconcile(_ context.Context, id string) (service.ReconcileReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.ran != nil {
		select {
		case f.ran <- struct{}{}:
		default:
		}
	}
	if f.fail[id] {
		return service.ReconcileReport{}, errors.New("boom")
	}
	return service.ReconcileReport{Activated: 1}, nil
}

func seed(repo *memory.ProfileRepo) {
	for _, p := range []model.Profile{
		{ID: "r1"}, {ID: "r2"},
		{ID: "c1", ReferrerID: "r1", Activated: true},
		{ID: "c2", ReferrerID: "r2", Activated: true},
		{ID: "c3", ReferrerID: "r2", Activated: false},
	} {
		p.Normalize()
		repo.Put(p)
	}
}

func TestSweep(t *testing.T) {
	repo := memory.NewProfileRepo()
	seed(repo)
	rec := &fakeReconciler{fail: map[string]bool{"r2": true}}
	s, err := New(repo, rec, time.Minute, nil)
	require.NoError(t, err)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"r1", "r2"}, rec.calls)
}

func TestSweep_WithRealServices(t *testing.T) {
	repo := memory.NewProfileRepo()
	seed(repo)
	rec := service.NewLoginReconciler(repo, service.NewMilestoneService(repo, nil), nil, nil)
	s, err := New(repo, rec, time.Minute, nil)
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())
	require.NoError(t, err)
	p, err := repo.Get(context.Background(), "r2")
	require.NoError(t, err)
	require.Equal(t, model.ReferrerActivationBonus, p.Trophies)
}

func TestNew_RejectsZeroInterval(t *testing.T) {
	_, err := New(memory.NewProfileRepo(), &fakeReconciler{}, 0, nil)
	require.Error(t, err)
}

func TestStart_RunsImmediately(t *testing.T) {
	repo := memory.NewProfileRepo()
	seed(repo)
	rec := &fakeReconciler{ran: make(chan struct{}, 1)}
	s, err := New(repo, rec, time.Hour, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-rec.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run")
	}
	require.NoError(t, s.Shutdown())
}
