package services

import (
	"context"
	"log/slog"

	"github.com/melih/rbuild/internal/core/domain"
	"github.com/melih/rbuild/internal/core/ports"
)

// Collector removes images built for a group that are no longer operating.
type Collector struct {
	images ports.ImageService
}

func NewCollector(images ports.ImageService) *Collector {
	return &Collector{images: images}
}

// Candidates returns the IDs of the group's images that are not in
// operating. An empty set selects every image of the group. Images without
// full provenance are foreign and never selected.
func (c *Collector) Candidates(ctx context.Context, group string, operating domain.OperatingImageSet) ([]string, error) {
	summaries, err := c.images.ListImages(ctx)
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, s := range summaries {
		img, err := c.images.InspectImage(ctx, s.ID)
		if err != nil {
			return nil, err
		}

		if !domain.HasProvenanceLabels(img.Labels) || img.Labels[domain.LabelComposeName] != group {
			continue
		}
		if operating.ContainsAny(img.RepoTags) {
			continue
		}
		stale = append(stale, img.ID)
	}
	return stale, nil
}

// Collect removes the candidates in one batched call and returns their
// IDs. A failed removal is a *domain.GarbageCollectionError.
func (c *Collector) Collect(ctx context.Context, group string, operating domain.OperatingImageSet) ([]string, error) {
	stale, err := c.Candidates(ctx, group, operating)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		slog.Debug("no stale images", "group", group)
		return nil, nil
	}

	slog.Info("removing stale images", "group", group, "count", len(stale))
	if err := c.images.RemoveImages(ctx, stale); err != nil {
		return nil, &domain.GarbageCollectionError{Group: group, Images: stale, Err: err}
	}

	imagesRemoved.WithLabelValues(group).Add(float64(len(stale)))
	return stale, nil
}
