package wasteapi

import (
	"fmt"
	"net/url"
)

// Paths for the waste transport backend.
// This file is the SINGLE SOURCE OF TRUTH for all backend URLs.

const (
	// BasePath is the prefix every waste transport route lives under.
	BasePath = "/waste_transport"

	// ListPath serves the manifest list page. A GET also issues the CSRF cookie.
	ListPath = BasePath + "/"

	// ImportPath accepts the multipart CSV upload.
	ImportPath = BasePath + "/import/"

	// ResolveConflictsPath resumes an import session with a conflict resolution.
	ResolveConflictsPath = BasePath + "/resolve_conflicts/"

	// DeleteManifestsPath soft-deletes a batch of manifests.
	DeleteManifestsPath = BasePath + "/delete_manifests/"

	// AllManifestIDsPath lists every manifest key matching the filters.
	AllManifestIDsPath = BasePath + "/get_all_manifest_ids/"

	// ExportPath downloads the filtered manifests as CSV.
	ExportPath = BasePath + "/export/"
)

// Header and cookie names used by the backend.
const (
	CSRFCookieName      = "csrftoken"
	CSRFHeader          = "X-CSRFToken"
	SessionCookieName   = "sessionid"
	RequestedWithHeader = "X-Requested-With"
	RequestIDHeader     = "X-Request-ID"
)

// DetailPath returns the detail route for one manifest.
func DetailPath(key ManifestKey) string {
	return fmt.Sprintf("%s/%s/%s/%s", BasePath, key.Type,
		url.PathEscape(key.ManifestID), url.PathEscape(key.WasteID))
}

// AutocompletePath returns the suggestion route for a field.
func AutocompletePath(field Field) string {
	return fmt.Sprintf("%s/autocomplete/%s/", BasePath, field)
}
