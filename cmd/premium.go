package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/premium"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/shared"
)

// premiumReport is the JSON shape of `premium status`.
type premiumReport struct {
	User   string         `json:"user"`
	Status premium.Status `json:"status"`
	Usage  premium.Usage  `json:"usage"`
}

// premiumUser resolves the --user Pi uid to its account, creating it on first use.
func (r *Runner) premiumUser(db *sql.DB, cmd *cli.Command) (*models.User, *premium.Manager, error) {
	uid := strings.TrimSpace(cmd.String("user"))
	users := repositories.NewUserRepository(db)

	user, err := users.GetByPiUID(uid)
	if errors.Is(err, shared.ErrNotFound) {
		user, err = users.Upsert(uid, uid)
	}
	if err != nil {
		return nil, nil, err
	}

	manager := premium.NewManager(repositories.NewPremiumRepository(db), r.config.Analysis.DailyLimit, r.logger.WithPrefix("premium"))
	return user, manager, nil
}

// PremiumStatus prints a user's unlocked features and today's analysis usage.
func (r *Runner) PremiumStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	user, manager, err := r.premiumUser(db, cmd)
	if err != nil {
		return err
	}

	status, err := manager.Status(user.ID())
	if err != nil {
		return err
	}
	usage, err := manager.Usage(user.ID(), time.Now())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(premiumReport{User: user.PiUID, Status: status, Usage: usage}, true)
	}

	green := color.New(color.FgGreen).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	r.writePlainHeader("Premium: " + user.PiUID)
	r.writePlain("Unlocked %d/%d (%d%%)\n\n", status.UnlockedCount, status.Total, status.Completion)
	for _, item := range premium.Catalog() {
		if containsFeature(status.Unlocked, item.Feature) {
			r.writePlain("  %s %-24s %s\n", green("✓"), item.Name, item.Feature)
		} else {
			r.writePlain("  %s %-24s %s\n", faint("·"), faint(item.Name), faint(item.Feature))
		}
	}

	if usage.Unlimited {
		r.writePlainln("Analyses today: %d (unlimited)", usage.Used)
	} else {
		r.writePlainln("Analyses today: %d/%d, %d remaining", usage.Used, usage.Limit, usage.Remaining)
	}
	if status.NextRecommended != "" {
		r.writePlain("Next recommended: %s\n", premium.Name(status.NextRecommended))
	}
	return nil
}

// PremiumUnlock grants a feature directly, for support and testing.
func (r *Runner) PremiumUnlock(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	user, manager, err := r.premiumUser(db, cmd)
	if err != nil {
		return err
	}

	feature := models.Feature(cmd.String("feature"))
	if err := manager.Unlock(user.ID(), feature, cmd.String("payment")); err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	return r.writePlain("%s %s unlocked for %s\n", green("✓"), premium.Name(feature), user.PiUID)
}

// PremiumCatalog lists the purchasable features.
func (r *Runner) PremiumCatalog(ctx context.Context, cmd *cli.Command) error {
	items := premium.Catalog()
	if cmd.Bool("json") {
		return r.writeJSON(items, true)
	}

	bold := color.New(color.Bold).SprintFunc()
	for _, item := range items {
		r.writePlain("%s (%s) - %.2f π\n", bold(item.Name), item.Feature, item.Price)
		r.writePlain("  %s\n", item.Description)
	}
	return nil
}

func containsFeature(fs []models.Feature, f models.Feature) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}
