package build

var CurrentCommit string

// BuildVersion is the local build version, set by build system
const BuildVersion = "1.1.0-dev"

func UserVersion() string {
	return BuildVersion + CurrentCommit
}
