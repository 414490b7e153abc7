package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VERSION has the current software version (set in the build process)
var (
	VERSION    string
	buildTime  string
	gitVersion string
)

func init() {
	if len(gitVersion) == 0 {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					gitVersion = s.Value[:7]
				}
			}
		}
	}
	if len(gitVersion) > 0 {
		VERSION = VERSION + "/" + gitVersion
	}
	if len(VERSION) == 0 {
		VERSION = "dev-snapshot"
	}
}

// VersionCmd is the kong "version" subcommand.
type VersionCmd struct{}

func (cmd *VersionCmd) Run() error {
	fmt.Printf("nextspeaker %s\n", Version())
	return nil
}

var (
	v     string
	vOnce sync.Once
)

func Version() string {
	vOnce.Do(func() {
		extra := []string{}
		if len(buildTime) > 0 {
			extra = append(extra, buildTime)
		}
		extra = append(extra, runtime.Version())
		v = fmt.Sprintf("%s (%s)", VERSION, strings.Join(extra, ", "))
	})
	return v
}

// RegisterMetric adds a build_info gauge for the named component.
func RegisterMetric(name string, reg prometheus.Registerer) {
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nextspeaker_build_info",
			Help: "Build information",
		},
		[]string{"component", "version", "goversion"},
	)
	reg.MustRegister(buildInfo)
	buildInfo.WithLabelValues(name, VERSION, runtime.Version()).Set(1)
}
