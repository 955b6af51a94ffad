package ingest

import "fmt"

// Two stored rows on the same platform are duplicates iff they share the
// platform-native content ID (when both have one) or the exact source URL.
// Every dedup decision in the system derives from IdentityKeys or from
// GroupKeySQL below; the two must express the same rule.

// IdentityKeys returns the composite identity keys of one content record.
// A record with a native content ID carries two keys, one without carries
// only the URL key.
func IdentityKeys(platformID int64, platformContentID, sourceURL string) []string {
	keys := make([]string, 0, 2)
	if platformContentID != "" {
		keys = append(keys, fmt.Sprintf("pcid:%d:%s", platformID, platformContentID))
	}
	if sourceURL != "" {
		keys = append(keys, fmt.Sprintf("url:%d:%s", platformID, sourceURL))
	}
	return keys
}

// GroupKeySQL is the SQL collapse of the composite identity key, used by the
// maintenance sweep to group rows. Combined with platform_id it groups
// exactly the rows IdentityKeys would consider duplicates.
const GroupKeySQL = "COALESCE(NULLIF(platform_content_id, ''), source_url)"
