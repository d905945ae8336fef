package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/logging"
	"github.com/slyt3/Quorum/internal/models"
)

const (
	InitDataHeader = "X-Telegram-Init-Data"
	InitDataCookie = "tg_init_data"
	maxInitData    = 8192
)

var (
	ErrMissingHash  = errors.New("init data has no hash")
	ErrBadSignature = errors.New("init data signature mismatch")
	ErrExpired      = errors.New("init data expired")
)

// UserUpserter maps an external identity to a local user, creating it on first contact.
type UserUpserter interface {
	UpsertExternalUser(ctx context.Context, externalID, username string, role models.Role) (models.WorkerID, error)
}

// TelegramResolver authenticates Telegram Mini App initData.
type TelegramResolver struct {
	users           UserUpserter
	botToken        string
	verifySignature bool
	maxAge          time.Duration
	now             func() time.Time
}

// NewTelegramResolver creates a resolver. maxAge of zero disables the auth_date check.
func NewTelegramResolver(users UserUpserter, botToken string, verifySignature bool, maxAge time.Duration) (*TelegramResolver, error) {
	if err := assert.NotNil(users, "user store"); err != nil {
		return nil, err
	}
	if err := assert.Check(!verifySignature || botToken != "", "bot token is required when signature verification is on"); err != nil {
		return nil, err
	}
	return &TelegramResolver{
		users:           users,
		botToken:        botToken,
		verifySignature: verifySignature,
		maxAge:          maxAge,
		now:             time.Now,
	}, nil
}

type telegramUser struct {
	ID       json.Number `json:"id"`
	Username string      `json:"username"`
}

func (t *TelegramResolver) Resolve(ctx context.Context, r *http.Request) (models.WorkerID, error) {
	raw := initDataFrom(r)
	if raw == "" || len(raw) > maxInitData {
		return "", models.ErrUnauthorized
	}

	var (
		values url.Values
		err    error
	)
	if t.verifySignature {
		values, err = VerifyInitData(raw, t.botToken)
	} else {
		values, err = url.ParseQuery(raw)
	}
	if err != nil {
		logging.Warn("init_data_rejected", logging.Fields{Component: "identity", Error: err.Error()})
		return "", models.ErrUnauthorized
	}
	if err := t.checkAge(values); err != nil {
		logging.Warn("init_data_rejected", logging.Fields{Component: "identity", Error: err.Error()})
		return "", models.ErrUnauthorized
	}

	var u telegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &u); err != nil || u.ID == "" {
		return "", models.ErrUnauthorized
	}
	id, err := t.users.UpsertExternalUser(ctx, "tg:"+u.ID.String(), u.Username, models.RoleWorker)
	if err != nil {
		return "", fmt.Errorf("resolving telegram user: %w", err)
	}
	return id, nil
}

func (t *TelegramResolver) checkAge(values url.Values) error {
	if t.maxAge <= 0 {
		return nil
	}
	sec, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return fmt.Errorf("auth_date: %w", err)
	}
	if t.now().Sub(time.Unix(sec, 0)) > t.maxAge {
		return ErrExpired
	}
	return nil
}

// VerifyInitData checks the initData hash: HMAC-SHA256 over the sorted
// "key=value" lines (hash excluded) keyed by HMAC-SHA256("WebAppData", botToken).
func VerifyInitData(raw, botToken string) (url.Values, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing init data: %w", err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrBadSignature
	}
	if !hmac.Equal(want, SignInitData(values, botToken)) {
		return nil, ErrBadSignature
	}
	return values, nil
}

// SignInitData computes the initData hash for values, ignoring any "hash" key.
func SignInitData(values url.Values, botToken string) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}

func initDataFrom(r *http.Request) string {
	if v := r.Header.Get(InitDataHeader); v != "" {
		return v
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "tma "); ok {
		return v
	}
	if c, err := r.Cookie(InitDataCookie); err == nil {
		if v, err := url.QueryUnescape(c.Value); err == nil {
			return v
		}
	}
	return ""
}
