// Copyright 2026 Mhttp Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version holds the mhttp version and build information.
package version // import "mhttp.org/mhttp/version"
import (
	"fortio.org/version"
)

var (
	// The following are (re)computed in init().
	shortVersion = "dev"
	longVersion  = "unknown long"
	fullVersion  = "unknown full"
)

// Short returns the 3 digit short mhttp version string Major.Minor.Patch.
// It matches the project git tag (without the leading v) or "dev" when not
// built from a tag.
func Short() string {
	return shortVersion
}

// Long returns the long version and build information.
// Format is "X.Y.X hash go-version processor os".
func Long() string {
	return longVersion
}

// Full returns the Long version plus all the run time BuildInfo, ie all the
// dependent modules and their version and hash.
func Full() string {
	return fullVersion
}

func init() { //nolint:gochecknoinits // version is burned in at load time
	shortVersion, longVersion, fullVersion = version.FromBuildInfoPath("mhttp.org/mhttp")
}
