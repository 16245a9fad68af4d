package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

const (
	// bruteForceUniqueAccounts is the distinct-account count above which an IP looks like credential stuffing
	bruteForceUniqueAccounts = 10
	// bruteForceFailureRate is the failure percentage above which an IP looks like password guessing
	bruteForceFailureRate = 80.0
	// bruteForceMinSamples is the number of attempts needed before the failure rate is trusted
	bruteForceMinSamples = 10
)

// bruteForceDetector is a read-only analysis over the durable audit trail
type bruteForceDetector struct {
	*lockoutDeps
}

func (d *bruteForceDetector) detect(ctx context.Context, ipAddress string, windowMinutes, threshold int) (*models.BruteForceResult, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	if ipAddress == "" {
		return nil, fmt.Errorf("%w: ip address is required", models.ErrValidation)
	}

	window := time.Duration(windowMinutes) * time.Minute
	if windowMinutes <= 0 {
		window = d.cfg.BruteForceWindow
	}
	if threshold <= 0 {
		threshold = d.cfg.BruteForceThreshold
	}

	since := d.now().Add(-window)
	attempts, _, err := d.attempts.Query(ctx, models.AttemptFilter{
		IPAddress: ipAddress,
		Since:     &since,
	}, models.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts for %s: %w", ipAddress, err)
	}

	result := analyzeAttempts(attempts, threshold, window)

	if result.IsSuspicious {
		d.audit.LogLockoutEvent(pkglogger.LockoutEvent{
			EventType: pkglogger.EventBruteForceSuspected,
			IPAddress: ipAddress,
			Attempts:  int64(result.AttemptCount),
			Metadata: map[string]string{
				"unique_accounts": strconv.Itoa(result.UniqueAccounts),
				"reasons":         strings.Join(result.Reasons, "; "),
			},
		})
	}

	return result, nil
}

// analyzeAttempts is the pure aggregate behind detect. Distinct emails and
// distinct usernames are counted separately and summed.
func analyzeAttempts(attempts []*models.LoginAttempt, threshold int, window time.Duration) *models.BruteForceResult {
	emails := make(map[string]struct{})
	usernames := make(map[string]struct{})
	failed := 0

	for _, a := range attempts {
		if a.Email != nil {
			emails[*a.Email] = struct{}{}
		}
		if a.Username != nil {
			usernames[*a.Username] = struct{}{}
		}
		if !a.Success {
			failed++
		}
	}

	total := len(attempts)
	result := &models.BruteForceResult{
		AttemptCount:   total,
		UniqueAccounts: len(emails) + len(usernames),
		IsSuspicious:   total >= threshold,
		Reasons:        make([]string, 0),
	}
	if total > 0 {
		result.FailureRate = math.Round(float64(failed)/float64(total)*10000) / 100
	}

	if result.IsSuspicious {
		result.Reasons = append(result.Reasons, fmt.Sprintf("attempt count %d meets threshold %d within %d minutes",
			total, threshold, int(window/time.Minute)))
	}
	if result.UniqueAccounts > bruteForceUniqueAccounts {
		result.Reasons = append(result.Reasons, fmt.Sprintf("attempts target %d distinct accounts", result.UniqueAccounts))
	}
	if result.FailureRate > bruteForceFailureRate && total > bruteForceMinSamples {
		result.Reasons = append(result.Reasons, fmt.Sprintf("failure rate %.1f%% over %d attempts", result.FailureRate, total))
	}

	return result
}
