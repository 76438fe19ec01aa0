package delivery

import (
	"context"

	"github.com/skilltreehq/mentor-platform/internal/graph"
	"github.com/skilltreehq/mentor-platform/pkg/logger"
)

// Link tiers in fallback order. "existingAccess" grants nothing new, so it
// is tried first; the raw item URL is the floor that always exists.
const (
	TierExistingAccess = "existing_access"
	TierAnonymous      = "anonymous"
	TierOrganization   = "organization"
	TierWebURL         = "web_url"
)

// ShareableLink is the URL chosen for a delivered file plus the tier that
// produced it.
type ShareableLink struct {
	URL  string
	Tier string
}

var linkTiers = []struct {
	tier  string
	scope string
}{
	{TierExistingAccess, graph.LinkScopeExistingAccess},
	{TierAnonymous, graph.LinkScopeAnonymous},
	{TierOrganization, graph.LinkScopeOrganization},
}

// ResolveShareableLink walks the sharing tiers from least to most permissive
// until one yields a URL. Tenant policy may forbid any tier; each refusal is
// absorbed and the next tier tried. The item's own web URL is the final
// fallback, so the result always carries a URL when file.WebURL is set.
func (p *Pipeline) ResolveShareableLink(ctx context.Context, client *graph.Client, file *UploadedFile) ShareableLink {
	for _, t := range linkTiers {
		url, err := client.CreateShareLink(ctx, file.ItemID, t.scope)
		if err != nil {
			p.log.Debug("share link tier refused",
				logger.StringField("tier", t.tier), logger.ErrorField(err))
			continue
		}
		if url == "" {
			continue
		}
		p.metrics.RecordLinkTier(t.tier)
		return ShareableLink{URL: url, Tier: t.tier}
	}

	p.metrics.RecordLinkTier(TierWebURL)
	p.log.Warn("all share link tiers refused, falling back to item URL",
		logger.FileNameField(file.Name))
	return ShareableLink{URL: file.WebURL, Tier: TierWebURL}
}
