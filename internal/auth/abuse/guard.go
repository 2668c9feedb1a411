// Package abuse enforces OTP request throttling and verification lockouts
// on top of Redis. All mutating checks run as Lua scripts so concurrent
// requests for the same email cannot race past a limit.
package abuse

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloramarket/velora/pkg/jwtx"
)

// Sentinel errors carry the user-facing lockout messages verbatim; the HTTP
// layer returns them as validation failures without rewording.
var (
	ErrLocked            = errors.New("Too many failed OTP attempts. Please try again later!")
	ErrSpamLocked        = errors.New("Too many OTP requests. Please try again later!")
	ErrCooldown          = errors.New("Please wait 1 minute before requesting a new OTP!")
	ErrTooManyRequests   = errors.New("Too many OTP requests. Please try again after 15 minutes!")
	ErrAttemptsExhausted = errors.New("Too many failed OTP attempts. Please try again after 15 minutes!")
	ErrExpired           = errors.New("OTP has expired. Please request a new one.")
	ErrResetTokenInvalid = errors.New("Invalid or expired password reset token")
)

// InvalidOTPError reports a mismatched code along with how many attempts
// remain before the account is locked.
type InvalidOTPError struct {
	Remaining int
}

func (e *InvalidOTPError) Error() string {
	return fmt.Sprintf("Invalid OTP. You have %d attempts left.", e.Remaining)
}

const (
	kindOTP          = "otp"
	kindLock         = "otp_lock"
	kindSpamLock     = "otp_spam_lock"
	kindCooldown     = "otp_cooldown"
	kindRequestCount = "otp_request_count"
	kindAttempts     = "otp_attempts"
	kindReset        = "password_reset"
)

const (
	otpTTL      = 5 * time.Minute
	cooldownTTL = 2 * time.Minute
	requestTTL  = 15 * time.Minute
	lockTTL     = 15 * time.Minute
	attemptsTTL = 5 * time.Minute
	resetTTL    = 10 * time.Minute

	maxRequests = 5
	maxFailures = 2
)

// recordScript bumps the per-email request counter, flipping the spam lock
// once the cap is exceeded. KEYS[1] is the counter, KEYS[2] the spam lock.
// ARGV: max requests, spam lock TTL, counter TTL. Returns -1 when locked.
var recordScript = redis.NewScript(`
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= tonumber(ARGV[1]) then
	redis.call("SET", KEYS[2], "true", "EX", ARGV[2])
	return -1
end
redis.call("SET", KEYS[1], count + 1, "EX", ARGV[3])
return count + 1
`)

// verifyScript compares the submitted code against the stored one and
// tracks failures. KEYS[1] is the code, KEYS[2] the failure counter,
// KEYS[3] the hard lock. ARGV: submitted code, max failures, lock TTL,
// failure counter TTL. Returns 0 on match, -1 when no code is stored,
// -2 when the failure cap is hit, otherwise the attempts remaining.
var verifyScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored then
	return -1
end
if stored == ARGV[1] then
	redis.call("DEL", KEYS[1], KEYS[2])
	return 0
end
local failed = tonumber(redis.call("GET", KEYS[2]) or "0")
if failed >= tonumber(ARGV[2]) then
	redis.call("SET", KEYS[3], "true", "EX", ARGV[3])
	redis.call("DEL", KEYS[1])
	return -2
end
redis.call("SET", KEYS[2], failed + 1, "EX", ARGV[4])
return tonumber(ARGV[2]) - failed
`)

// Guard throttles OTP issuance and verification for a single principal
// role. User and seller flows get separate Guards so their counters never
// collide on a shared email address.
type Guard struct {
	rdb   *redis.Client
	scope string
}

func NewGuard(rdb *redis.Client, role jwtx.Role) *Guard {
	return &Guard{rdb: rdb, scope: string(role) + "-auth"}
}

func (g *Guard) key(kind, email string) string {
	return g.scope + ":" + kind + ":" + email
}

// EnsureRequestAllowed rejects OTP requests while any lock or cooldown
// is active for the email.
func (g *Guard) EnsureRequestAllowed(ctx context.Context, email string) error {
	vals, err := g.rdb.MGet(ctx,
		g.key(kindLock, email),
		g.key(kindSpamLock, email),
		g.key(kindCooldown, email),
	).Result()
	if err != nil {
		return fmt.Errorf("abuse: check request guards: %w", err)
	}

	switch {
	case vals[0] != nil:
		return ErrLocked
	case vals[1] != nil:
		return ErrSpamLocked
	case vals[2] != nil:
		return ErrCooldown
	}
	return nil
}

// RecordRequest counts an OTP request against the email's 15 minute
// window, engaging the spam lock once the window holds too many.
func (g *Guard) RecordRequest(ctx context.Context, email string) error {
	keys := []string{g.key(kindRequestCount, email), g.key(kindSpamLock, email)}
	n, err := recordScript.Run(ctx, g.rdb, keys,
		maxRequests,
		int(lockTTL.Seconds()),
		int(requestTTL.Seconds()),
	).Int()
	if err != nil {
		return fmt.Errorf("abuse: record otp request: %w", err)
	}
	if n < 0 {
		return ErrTooManyRequests
	}
	return nil
}

// Issue generates a fresh 6-digit code, stores it for 5 minutes and arms
// the request cooldown. The failure counter starts over with the new code,
// so misses against an expired code never count against a fresh one. The
// caller is responsible for delivering the code.
func (g *Guard) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateOTP()
	if err != nil {
		return "", err
	}

	pipe := g.rdb.TxPipeline()
	pipe.Set(ctx, g.key(kindOTP, email), code, otpTTL)
	pipe.Set(ctx, g.key(kindCooldown, email), "true", cooldownTTL)
	pipe.Del(ctx, g.key(kindAttempts, email))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("abuse: store otp: %w", err)
	}
	return code, nil
}

// Verify checks the submitted code. A match consumes the code and clears
// the failure counter; a third mismatch locks the email for 15 minutes
// and discards the stored code.
func (g *Guard) Verify(ctx context.Context, email, code string) error {
	keys := []string{
		g.key(kindOTP, email),
		g.key(kindAttempts, email),
		g.key(kindLock, email),
	}
	res, err := verifyScript.Run(ctx, g.rdb, keys,
		code,
		maxFailures,
		int(lockTTL.Seconds()),
		int(attemptsTTL.Seconds()),
	).Int()
	if err != nil {
		return fmt.Errorf("abuse: verify otp: %w", err)
	}

	switch {
	case res == 0:
		return nil
	case res == -1:
		return ErrExpired
	case res == -2:
		return ErrAttemptsExhausted
	default:
		return &InvalidOTPError{Remaining: res}
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("abuse: generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
