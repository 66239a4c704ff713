package utils

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/pointsplay/config"
)

// Registration limits guard the referral bonus. All checks fail open when Redis is disabled
// or unreachable.

var (
	ErrRegistrationBanned   = errors.New("too many failed registrations, try again later")
	ErrRegistrationCooldown = errors.New("please wait before registering again")
	ErrRegistrationLimit    = errors.New("daily registration limit reached for this address")
)

const regTimeout = 500 * time.Millisecond

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

// CheckRegistration decides whether ip may attempt a registration now.
func CheckRegistration(ctx context.Context, ip string) error {
	cli := GetRedis()
	if cli == nil {
		return nil
	}
	cfg := config.Get()
	ctx, cancel := context.WithTimeout(ctx, regTimeout)
	defer cancel()

	if n, err := cli.Exists(ctx, regKey("ban", ip)).Result(); err == nil && n > 0 {
		return ErrRegistrationBanned
	}
	if limit := cfg.RegisterMaxPerIPPerDay; limit > 0 {
		n, err := cli.Get(ctx, regKey("succday", ip, time.Now().Format("20060102"))).Int()
		if err == nil && n >= limit {
			return ErrRegistrationLimit
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil
		}
	}
	if sec := cfg.RegisterAttemptCooldownSec; sec > 0 {
		ok, err := cli.SetNX(ctx, regKey("cooldown", ip), "1", time.Duration(sec)*time.Second).Result()
		if err == nil && !ok {
			return ErrRegistrationCooldown
		}
	}
	return nil
}

// RecordRegistrationSuccess counts a completed registration against today's limit.
func RecordRegistrationSuccess(ctx context.Context, ip string) {
	cli := GetRedis()
	if cli == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, regTimeout)
	defer cancel()
	key := regKey("succday", ip, time.Now().Format("20060102"))
	if err := cli.Incr(ctx, key).Err(); err == nil {
		_ = cli.Expire(ctx, key, 24*time.Hour).Err()
	}
}

// RecordRegistrationFailure counts a failed attempt and bans ip for RegisterTempBanMinutes
// once the hourly limit is exceeded.
func RecordRegistrationFailure(ctx context.Context, ip string) {
	cli := GetRedis()
	if cli == nil {
		return
	}
	cfg := config.Get()
	ctx, cancel := context.WithTimeout(ctx, regTimeout)
	defer cancel()
	key := regKey("failhour", ip, time.Now().Format("2006010215"))
	n, err := cli.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	_ = cli.Expire(ctx, key, time.Hour).Err()
	if limit := cfg.RegisterFailedMaxPerIPPerHour; limit > 0 && int(n) > limit {
		_ = cli.Set(ctx, regKey("ban", ip), "1", time.Duration(nz(cfg.RegisterTempBanMinutes, 60))*time.Minute).Err()
	}
}
