package donation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/domain"
	"github.com/furfur/central/internal/player"
	"github.com/furfur/central/internal/whitelist"
)

// Granter issues whitelist grants for already resolved players. whitelist.Whitelists satisfies it.
type Granter interface {
	IssueGrant(ctx context.Context, playerID int64, adminID int64, serverType string, days int, ignoreBans bool) (whitelist.Grant, error)
}

// AdminResolver provides the player recorded as the issuing admin of donation grants.
type AdminResolver interface {
	GetOrCreateByDiscordID(ctx context.Context, discordID string) (player.Player, error)
}

// Bridge turns qualifying donations into whitelist grants for every configured category.
type Bridge struct {
	granter Granter
	admins  AdminResolver
	conf    config.Donation
}

func NewBridge(granter Granter, admins AdminResolver, conf config.Donation) Bridge {
	return Bridge{granter: granter, admins: admins, conf: conf}
}

// Apply attempts one grant per configured category when the donation tier reaches the configured
// minimum. Each category is attempted independently. A category blocked by an active whitelist ban
// is logged and reported in Skipped. Any other failure stops the bridge and is returned.
func (b Bridge) Apply(ctx context.Context, donation Donation, donationDays int) (Created, error) {
	result := Created{Grants: []whitelist.Grant{}, Skipped: []string{}}

	if donation.Tier < b.conf.MinTier || len(b.conf.Categories) == 0 {
		return result, nil
	}

	admin, errAdmin := b.admins.GetOrCreateByDiscordID(ctx, b.conf.AdminDiscordID)
	if errAdmin != nil {
		return result, errAdmin
	}

	days := b.conf.GrantDays(donationDays)

	for _, category := range b.conf.Categories {
		grant, errGrant := b.granter.IssueGrant(ctx, donation.PlayerID, admin.ID, category, days, false)
		if errGrant != nil {
			if errors.Is(errGrant, domain.ErrBanned) {
				slog.Warn("Skipped donation grant for banned category", slog.Int64("donation_id", donation.ID),
					slog.Int64("player_id", donation.PlayerID), slog.String("server_type", category))

				result.Skipped = append(result.Skipped, category)

				continue
			}

			return result, errGrant
		}

		result.Grants = append(result.Grants, grant)
	}

	return result, nil
}
