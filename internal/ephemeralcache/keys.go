package ephemeralcache

import "fmt"

// Key builders for the three cacheable namespaces named in §3.

func UserMetaKey(userKey string) string {
	return fmt.Sprintf("user_meta:%s", userKey)
}

func DiffSessionKey(sessionID string) string {
	return fmt.Sprintf("diff_session:%s", sessionID)
}

func CollectionHashKey(userKey string) string {
	return fmt.Sprintf("collection_hash:%s", userKey)
}
