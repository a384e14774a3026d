package kevo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kevoctl/lib/htmlutil"
)

// BoltState is the physical lock status reported by the portal.
type BoltState string

const (
	BoltStateLocked   BoltState = "Locked"
	BoltStateUnlocked BoltState = "Unlocked"
	// Unknown is observation-only: it is never commanded, only the
	// result of an unparsable read.
	BoltStateUnknown BoltState = "Unknown"
)

// the portal has been seen reporting bolt states in both title and
// lower case
func ParseBoltState(s string) BoltState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "locked":
		return BoltStateLocked
	case "unlocked":
		return BoltStateUnlocked
	}
	return BoltStateUnknown
}

type lockInfo struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	BoltState string `json:"bolt_state"`
}

func (c *Client) lockInfo(ctx context.Context, lockId string) (lockInfo, error) {
	res, err := c.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return c.Http.R().
			SetContext(ctx).
			SetQueryParam("arguments", lockId).
			Get(commandsPath + "/lock.json")
	})
	if err != nil {
		return lockInfo{}, err
	}
	if res.StatusCode() != 200 {
		return lockInfo{}, fmt.Errorf(
			"%w: get lock info returned status %d",
			ErrScrape, res.StatusCode(),
		)
	}

	var info lockInfo
	err = json.Unmarshal(res.Body(), &info)
	if err != nil {
		return lockInfo{}, fmt.Errorf("%w: %s", ErrScrape, err.Error())
	}
	return info, nil
}

// GetLocks scrapes the account's lock listing page and resolves the
// details of every lock found on it. Locks come back in vendor order;
// an account with no registered locks yields an empty slice.
func (c *Client) GetLocks(ctx context.Context) ([]*Lock, error) {
	ctx, span := tracer.Start(ctx, "client:GetLocks")
	defer span.End()

	res, err := c.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return c.Http.R().
			SetContext(ctx).
			Get(locksPath)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch lock listing")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse lock listing html")
		return nil, err
	}

	var locks []*Lock
	var scrapeErr error
	doc.Find("ul.lock").EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		container := entry.Find("div.lock_unlock_container")
		id := container.AttrOr("data-lock-id", "")
		if id == "" {
			scrapeErr = fmt.Errorf(
				"%w: lock entry without a data-lock-id attribute",
				ErrScrape,
			)
			return false
		}

		info, err := c.lockInfo(ctx, id)
		if err != nil {
			scrapeErr = err
			return false
		}

		lock := newLock(c, id)
		lock.Name = htmlutil.CleanText(info.Name)
		lock.State = ParseBoltState(info.BoltState)
		locks = append(locks, lock)

		span.AddEvent("lock", trace.WithAttributes(
			attribute.String("id", lock.ID),
			attribute.String("name", lock.Name),
			attribute.String("state", string(lock.State)),
		))
		return true
	})
	if scrapeErr != nil {
		span.RecordError(scrapeErr)
		span.SetStatus(codes.Error, "failed to scrape lock listing")
		return nil, scrapeErr
	}

	return locks, nil
}

// Lock represents a single lock by identifier. All of its operations
// route through the session client it is bound to.
type Lock struct {
	ID    string
	Name  string
	State BoltState

	client *Client
}

func newLock(client *Client, id string) *Lock {
	return &Lock{
		ID:     id,
		State:  BoltStateUnknown,
		client: client,
	}
}

// NewLock binds a lock handle with a known identifier to an existing
// session client, sharing its authentication with any other handles on
// the same client.
func NewLock(client *Client, id string) *Lock {
	return newLock(client, id)
}

// FromLockID constructs a lock handle from a known lock UUID and
// credentials, with its own session client, and refreshes it once.
func FromLockID(ctx context.Context, id, username, password string) (*Lock, error) {
	return fromLockID(ctx, id, ClientOptions{
		Username: username,
		Password: password,
	})
}

func fromLockID(ctx context.Context, id string, opts ClientOptions) (*Lock, error) {
	client, err := NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	lock := newLock(client, id)
	err = lock.Refresh(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	return lock, nil
}

func (l *Lock) String() string {
	return fmt.Sprintf("%s: %s", l.Name, l.State)
}

// Refresh re-reads the lock's details from the portal. State is never
// cached beyond a single read.
func (l *Lock) Refresh(ctx context.Context) error {
	info, err := l.client.lockInfo(ctx, l.ID)
	if err != nil {
		return err
	}
	l.Name = htmlutil.CleanText(info.Name)
	l.State = ParseBoltState(info.BoltState)
	return nil
}

// GetBoltState refreshes and returns the current bolt state. An
// unparsable read degrades to BoltStateUnknown instead of failing,
// since this is a best-effort scrape; auth and transport failures still
// return an error.
func (l *Lock) GetBoltState(ctx context.Context) (BoltState, error) {
	err := l.Refresh(ctx)
	if errors.Is(err, ErrScrape) {
		l.State = BoltStateUnknown
		return BoltStateUnknown, nil
	}
	if err != nil {
		return BoltStateUnknown, err
	}
	return l.State, nil
}

const defaultCommandTimeout = time.Second * 20

// Lock locks this lock. If it is already locked this has no effect.
func (l *Lock) Lock(ctx context.Context) error {
	return l.command(ctx, "remote_lock.json", BoltStateLocked)
}

// Unlock unlocks this lock. If it is already unlocked this has no effect.
func (l *Lock) Unlock(ctx context.Context) error {
	return l.command(ctx, "remote_unlock.json", BoltStateUnlocked)
}

func (l *Lock) command(ctx context.Context, endpoint string, target BoltState) error {
	ctx, span := tracer.Start(ctx, "lock:"+endpoint)
	span.SetAttributes(attribute.String("lock_id", l.ID))
	defer span.End()

	res, err := l.client.do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return l.client.Http.R().
			SetContext(ctx).
			SetQueryParam("arguments", l.ID).
			Get(commandsPath + "/" + endpoint)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to issue command")
		return err
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("%w: status %d", ErrCommandRejected, res.StatusCode())
		span.RecordError(err)
		span.SetStatus(codes.Error, "command rejected")
		return err
	}

	err = l.waitForState(ctx, target, defaultCommandTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bolt state never settled")
		return err
	}
	return nil
}

// WaitForLocked polls until the bolt reports locked or the timeout
// elapses.
func (l *Lock) WaitForLocked(ctx context.Context, timeout time.Duration) error {
	return l.waitForState(ctx, BoltStateLocked, timeout)
}

// WaitForUnlocked polls until the bolt reports unlocked or the timeout
// elapses.
func (l *Lock) WaitForUnlocked(ctx context.Context, timeout time.Duration) error {
	return l.waitForState(ctx, BoltStateUnlocked, timeout)
}

func (l *Lock) waitForState(ctx context.Context, target BoltState, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := l.Refresh(ctx)
		if err == nil && l.State == target {
			return nil
		}
		if err != nil && !errors.Is(err, ErrScrape) {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf(
				"timeout waiting for %s",
				strings.ToLower(string(target)),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// StartSession eagerly authenticates this lock's session so that
// multiple commands can be executed without re-authorizing each one.
func (l *Lock) StartSession(ctx context.Context) error {
	return l.client.EnsureSession(ctx)
}

// EndSession drops the session so that any further command will
// re-authorize, and releases idle connections.
func (l *Lock) EndSession() {
	l.client.Invalidate()
	l.client.Close()
}
