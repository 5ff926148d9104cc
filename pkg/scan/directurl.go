package scan

import (
	"encoding/json"
	"os"

	"github.com/pyvet/pyvet/pkg/errors"
	"github.com/pyvet/pyvet/pkg/spec"
)

// VCSInfo records the version-control request an installer resolved, as
// written to direct_url.json.
type VCSInfo struct {
	VCS               string `json:"vcs"`
	CommitID          string `json:"commit_id"`
	RequestedRevision string `json:"requested_revision,omitempty"`
}

// DirectURL is the installer-recorded source of a package installed from a
// URL. Only the vcs_info variant participates in matching bound URL pins;
// archive and directory installs compare on the URL alone.
type DirectURL struct {
	URL     string   `json:"url"`
	VCSInfo *VCSInfo `json:"vcs_info,omitempty"`
}

// DirectURLFromFile reads a direct_url.json file.
func DirectURLFromFile(path string) (*DirectURL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot read %s", path)
	}
	var d DirectURL
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "cannot parse %s", path)
	}
	return &d, nil
}

// Validate reports whether a bound specifier's URL pin matches this
// installed source. Userinfo is stripped from both sides, since installers
// are inconsistent about recording it. With vcs_info present the bound URL
// must reconstruct as vcs+url@revision, trying the requested revision first
// and the resolved commit second; without it the URLs compare directly.
func (d *DirectURL) Validate(specURL string) bool {
	bound := spec.StripURLUser(specURL)
	installed := spec.StripURLUser(d.URL)

	if d.VCSInfo != nil {
		if rev := d.VCSInfo.RequestedRevision; rev != "" {
			if d.VCSInfo.VCS+"+"+installed+"@"+rev == bound {
				return true
			}
		}
		return d.VCSInfo.VCS+"+"+installed+"@"+d.VCSInfo.CommitID == bound
	}
	return installed == bound
}
