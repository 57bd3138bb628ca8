package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bookshare/internal/apiclient"
	"bookshare/internal/tokeninfo"
	"bookshare/pkg/domain"
	"bookshare/pkg/kv"
)

var (
	// ErrBusy is returned when a register or login call is already running for the slot.
	ErrBusy = errors.New("session: request already in progress")
	// ErrUnknownSlot is returned for a slot name other than primary or client.
	ErrUnknownSlot = errors.New("session: unknown identity slot")
)

// Session is the in-memory state of one identity slot.
type Session struct {
	Token    string
	Identity *domain.UserProfile
	// IsLoading is true while a register or login call is in flight.
	IsLoading bool
	// IsCheckingAuth is true until the first Restore of the slot completes.
	IsCheckingAuth bool
}

// SignedIn reports whether both token and identity are present.
func (s Session) SignedIn() bool {
	return s.Token != "" && s.Identity != nil
}

// Authenticator exchanges credentials with the API.
type Authenticator interface {
	Register(ctx context.Context, slot domain.Slot, username, email, password string) (apiclient.Credentials, error)
	Login(ctx context.Context, slot domain.Slot, email, password string) (apiclient.Credentials, error)
}

// Keys are the storage keys holding one slot's session.
type Keys struct {
	Token string
	User  string
}

// StorageKeys maps each slot to its durable keys.
var StorageKeys = map[domain.Slot]Keys{
	domain.SlotPrimary: {Token: "token", User: "user"},
	domain.SlotClient:  {Token: "tokenClient", User: "userClient"},
}

// Config holds the collaborators of a Store.
type Config struct {
	KV     kv.Store
	API    Authenticator
	Logger *slog.Logger
	// RejectExpired drops a restored session whose JWT has expired.
	RejectExpired bool
	Leeway        time.Duration
	Now           func() time.Time
}

type slotState struct {
	slot domain.Slot
	keys Keys

	mu      sync.Mutex
	session Session
	// epoch changes when a login or register commits and on logout; a restore
	// started under an older epoch must not apply its result.
	epoch uint64
}

// Store owns the primary and client sessions. The two slots share no lock and no storage keys.
type Store struct {
	kv            kv.Store
	api           Authenticator
	logger        *slog.Logger
	rejectExpired bool
	leeway        time.Duration
	now           func() time.Time

	slots map[domain.Slot]*slotState
}

// New constructs a Store with both slots empty and still checking auth.
func New(cfg Config) (*Store, error) {
	if cfg.KV == nil {
		return nil, errors.New("session: key/value store is required")
	}
	if cfg.API == nil {
		return nil, errors.New("session: authenticator is required")
	}
	s := &Store{
		kv:            cfg.KV,
		api:           cfg.API,
		logger:        cfg.Logger,
		rejectExpired: cfg.RejectExpired,
		leeway:        cfg.Leeway,
		now:           cfg.Now,
		slots:         make(map[domain.Slot]*slotState, len(domain.Slots)),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, slot := range domain.Slots {
		s.slots[slot] = &slotState{
			slot:    slot,
			keys:    StorageKeys[slot],
			session: Session{IsCheckingAuth: true},
		}
	}
	return s, nil
}

func (s *Store) state(slot domain.Slot) (*slotState, error) {
	st, ok := s.slots[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	return st, nil
}

// Snapshot returns a copy of the slot's session.
func (s *Store) Snapshot(slot domain.Slot) Session {
	st, err := s.state(slot)
	if err != nil {
		return Session{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.session
	if out.Identity != nil {
		identity := *out.Identity
		out.Identity = &identity
	}
	return out
}

// Credential returns the bearer token and identity of a signed-in slot.
func (s *Store) Credential(slot domain.Slot) (string, domain.UserProfile, bool) {
	snap := s.Snapshot(slot)
	if !snap.SignedIn() {
		return "", domain.UserProfile{}, false
	}
	return snap.Token, *snap.Identity, true
}

type registerInput struct {
	Username string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Register creates an account for slot and signs it in.
// On failure the slot is left as it was and the error carries the message to show.
func (s *Store) Register(ctx context.Context, slot domain.Slot, username, email, password string) error {
	in := registerInput{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email), Password: password}
	if err := apiclient.Validate(in); err != nil {
		return err
	}
	return s.authenticate(ctx, slot, "register", func() (apiclient.Credentials, error) {
		return s.api.Register(ctx, slot, in.Username, in.Email, in.Password)
	})
}

// Login signs slot in with email and password.
func (s *Store) Login(ctx context.Context, slot domain.Slot, email, password string) error {
	in := loginInput{Email: strings.TrimSpace(email), Password: password}
	if err := apiclient.Validate(in); err != nil {
		return err
	}
	return s.authenticate(ctx, slot, "login", func() (apiclient.Credentials, error) {
		return s.api.Login(ctx, slot, in.Email, in.Password)
	})
}

func (s *Store) authenticate(ctx context.Context, slot domain.Slot, op string, call func() (apiclient.Credentials, error)) error {
	st, err := s.state(slot)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if st.session.IsLoading {
		st.mu.Unlock()
		return ErrBusy
	}
	st.session.IsLoading = true
	st.mu.Unlock()
	defer func() {
		st.mu.Lock()
		st.session.IsLoading = false
		st.mu.Unlock()
	}()

	creds, err := call()
	if err != nil {
		s.logger.Warn("authentication failed", "slot", slot, "op", op, "err", err)
		return err
	}
	if err := s.persist(ctx, st, creds); err != nil {
		s.logger.Error("persist session", "slot", slot, "err", err)
		return err
	}

	identity := creds.User
	st.mu.Lock()
	st.epoch++
	st.session.Token = creds.Token
	st.session.Identity = &identity
	st.mu.Unlock()
	s.logger.Info("signed in", "slot", slot, "op", op, "user_id", identity.ID)
	return nil
}

func (s *Store) persist(ctx context.Context, st *slotState, creds apiclient.Credentials) error {
	profile, err := json.Marshal(creds.User)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.kv.Set(ctx, st.keys.User, string(profile)); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	if err := s.kv.Set(ctx, st.keys.Token, creds.Token); err != nil {
		// Do not leave a profile without its token behind.
		_ = s.kv.Delete(ctx, st.keys.User)
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Restore loads the slot's session from storage. It never calls the network.
// Whatever happens, IsCheckingAuth is false when it returns. Storage errors
// leave the slot signed out and are returned for reporting.
func (s *Store) Restore(ctx context.Context, slot domain.Slot) error {
	st, err := s.state(slot)
	if err != nil {
		return err
	}
	st.mu.Lock()
	epoch := st.epoch
	st.mu.Unlock()

	token, identity, invalid, readErr := s.read(ctx, st)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.session.IsCheckingAuth = false
	if st.epoch != epoch {
		s.logger.Debug("restore superseded", "slot", slot)
		return readErr
	}
	// A sign-in in flight may be halfway through writing the keys.
	if invalid && !st.session.IsLoading {
		readErr = s.purge(ctx, st)
	}
	if readErr != nil {
		s.logger.Error("restore session", "slot", slot, "err", readErr)
		st.session.Token = ""
		st.session.Identity = nil
		return readErr
	}
	if identity == nil {
		st.session.Token = ""
		st.session.Identity = nil
		return nil
	}
	st.session.Token = token
	st.session.Identity = identity
	s.logger.Info("session restored", "slot", slot, "user_id", identity.ID)
	return nil
}

// read returns the stored session, or a nil identity when there is no valid one.
// invalid is set for leftovers that should be purged: a token without a
// profile, an unreadable profile or an expired token.
func (s *Store) read(ctx context.Context, st *slotState) (token string, identity *domain.UserProfile, invalid bool, err error) {
	token, hasToken, err := s.kv.Get(ctx, st.keys.Token)
	if err != nil {
		return "", nil, false, fmt.Errorf("read token: %w", err)
	}
	raw, hasUser, err := s.kv.Get(ctx, st.keys.User)
	if err != nil {
		return "", nil, false, fmt.Errorf("read profile: %w", err)
	}
	if !hasToken && !hasUser {
		return "", nil, false, nil
	}
	if !hasToken || !hasUser || strings.TrimSpace(token) == "" {
		s.logger.Warn("incomplete stored session", "slot", st.slot, "has_token", hasToken, "has_profile", hasUser)
		return "", nil, true, nil
	}
	var profile domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil || strings.TrimSpace(profile.ID) == "" {
		s.logger.Warn("unreadable stored profile", "slot", st.slot, "err", err)
		return "", nil, true, nil
	}
	if s.rejectExpired && tokeninfo.Expired(token, s.now(), s.leeway) {
		s.logger.Info("stored token expired", "slot", st.slot, "user_id", profile.ID)
		return "", nil, true, nil
	}
	return token, &profile, false, nil
}

func (s *Store) purge(ctx context.Context, st *slotState) error {
	return errors.Join(
		s.kv.Delete(ctx, st.keys.Token),
		s.kv.Delete(ctx, st.keys.User),
	)
}

// RestoreAll restores both slots concurrently. Every slot finishes its check
// even when the other fails.
func (s *Store) RestoreAll(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(domain.Slots))
	for i, slot := range domain.Slots {
		g.Go(func() error {
			errs[i] = s.Restore(ctx, slot)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Logout deletes the slot's storage keys and clears its in-memory session.
// Missing keys are not an error. The other slot is never touched.
func (s *Store) Logout(ctx context.Context, slot domain.Slot) error {
	st, err := s.state(slot)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.epoch++
	st.session.Token = ""
	st.session.Identity = nil
	st.mu.Unlock()

	if err := s.purge(ctx, st); err != nil {
		s.logger.Error("logout: delete stored session", "slot", slot, "err", err)
		return fmt.Errorf("logout %s: %w", slot, err)
	}
	s.logger.Info("signed out", "slot", slot)
	return nil
}
