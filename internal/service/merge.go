package service

import "creator_sync/internal/domain"

// mergeNewPosts appends batch posts whose id is not already stored, keeping
// existing order followed by discovery order. Existing posts are untouched,
// so replaying the same batch is a no-op.
func mergeNewPosts(existing, batch []domain.PlatformPost) (merged []domain.PlatformPost, added int) {
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[p.ID] = struct{}{}
	}

	merged = make([]domain.PlatformPost, len(existing), len(existing)+len(batch))
	copy(merged, existing)

	for _, p := range batch {
		if _, ok := known[p.ID]; ok {
			continue
		}
		known[p.ID] = struct{}{}
		merged = append(merged, p)
		added++
	}
	return merged, added
}

// mergeRefreshCounts overwrites the count fields of stored posts matched by
// id in the batch and appends batch posts not yet stored. A refresh is
// targeted, not authoritative: stored posts absent from the batch stay
// as-is, and caption/url/timestamp of matched posts are never touched.
func mergeRefreshCounts(existing, batch []domain.PlatformPost) (merged []domain.PlatformPost, updated, added int) {
	byID := make(map[string]domain.PlatformPost, len(batch))
	for _, p := range batch {
		byID[p.ID] = p
	}

	merged = make([]domain.PlatformPost, len(existing), len(existing)+len(batch))
	copy(merged, existing)

	seen := make(map[string]struct{}, len(existing))
	for i := range merged {
		seen[merged[i].ID] = struct{}{}
		fresh, ok := byID[merged[i].ID]
		if !ok {
			continue
		}
		merged[i].Views = fresh.Views
		merged[i].Likes = fresh.Likes
		merged[i].Comments = fresh.Comments
		merged[i].Shares = fresh.Shares
		merged[i].Saves = fresh.Saves
		updated++
	}

	for _, p := range batch {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
		added++
	}
	return merged, updated, added
}
