package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/ids"
	"github.com/fyrsmithlabs/folio/internal/storage"
)

// Store loads and saves the owner profile.
type Store struct {
	store    storage.Store
	seedPath string
	logger   *zap.Logger

	mu      sync.RWMutex
	current *Profile
	subs    []func(Profile)
}

// NewStore creates a profile store. seedPath may be empty.
func NewStore(store storage.Store, seedPath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{store: store, seedPath: seedPath, logger: logger}
}

// Load returns the persisted profile. Without one it falls back to the
// seed file and then to Default. Unreadable stored data is logged and
// treated as absent.
func (s *Store) Load(ctx context.Context) Profile {
	s.mu.RLock()
	if s.current != nil {
		p := s.current.Clone()
		s.mu.RUnlock()
		return p
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		p := s.loadLocked(ctx)
		s.current = &p
	}
	return s.current.Clone()
}

func (s *Store) loadLocked(ctx context.Context) Profile {
	var p Profile
	err := s.store.Get(ctx, storage.KeyProfile, &p)
	switch {
	case err == nil:
		return p
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.logger.Error("failed to load profile from storage, using default", zap.Error(err))
	}

	if s.seedPath != "" {
		seed, err := LoadSeed(s.seedPath)
		if err == nil {
			return seed
		}
		if !os.IsNotExist(err) {
			s.logger.Warn("ignoring profile seed", zap.String("path", s.seedPath), zap.Error(err))
		}
	}
	return Default()
}

// Save replaces the profile. Entries with an empty id get a fresh one.
func (s *Store) Save(ctx context.Context, p Profile) (Profile, error) {
	p = p.Clone()
	if err := normalize(&p); err != nil {
		return Profile{}, err
	}
	if err := s.store.Put(ctx, storage.KeyProfile, p); err != nil {
		return Profile{}, fmt.Errorf("persisting profile: %w", err)
	}

	s.mu.Lock()
	s.current = &p
	subs := append([]func(Profile){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(p.Clone())
	}
	s.logger.Info("profile saved",
		zap.Int("experience", len(p.Experience)),
		zap.Int("projects", len(p.Projects)),
		zap.Int("skills", len(p.Skills)),
	)
	return p.Clone(), nil
}

// AddSkill appends a skill unless an equal one (ignoring case) exists.
func (s *Store) AddSkill(ctx context.Context, skill string) (Profile, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return s.Load(ctx), nil
	}
	p := s.Load(ctx)
	for _, existing := range p.Skills {
		if strings.EqualFold(existing, skill) {
			return p, nil
		}
	}
	p.Skills = append(p.Skills, skill)
	return s.Save(ctx, p)
}

// RemoveSkill drops a skill, matching case-insensitively.
func (s *Store) RemoveSkill(ctx context.Context, skill string) (Profile, error) {
	p := s.Load(ctx)
	kept := p.Skills[:0]
	for _, existing := range p.Skills {
		if !strings.EqualFold(existing, strings.TrimSpace(skill)) {
			kept = append(kept, existing)
		}
	}
	p.Skills = kept
	return s.Save(ctx, p)
}

// Subscribe registers fn to receive every saved profile.
func (s *Store) Subscribe(fn func(Profile)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func normalize(p *Profile) error {
	seen := make(map[string]struct{}, len(p.Skills))
	for _, skill := range p.Skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSkill, skill)
		}
		seen[key] = struct{}{}
	}

	expIDs := make([]*string, len(p.Experience))
	for i := range p.Experience {
		expIDs[i] = &p.Experience[i].ID
	}
	if err := assignIDs("experience", expIDs); err != nil {
		return err
	}
	eduIDs := make([]*string, len(p.Education))
	for i := range p.Education {
		eduIDs[i] = &p.Education[i].ID
	}
	if err := assignIDs("education", eduIDs); err != nil {
		return err
	}
	projIDs := make([]*string, len(p.Projects))
	for i := range p.Projects {
		projIDs[i] = &p.Projects[i].ID
	}
	return assignIDs("projects", projIDs)
}

func assignIDs(list string, idPtrs []*string) error {
	seen := make(map[string]struct{}, len(idPtrs))
	for _, id := range idPtrs {
		if *id == "" {
			continue
		}
		if _, dup := seen[*id]; dup {
			return fmt.Errorf("%w: %s %q", ErrDuplicateID, list, *id)
		}
		seen[*id] = struct{}{}
	}
	for _, id := range idPtrs {
		if *id == "" {
			*id = ids.New()
		}
	}
	return nil
}
