package obs

import (
	pyroscope "github.com/grafana/pyroscope-go"
)

// StartProfiler attaches continuous profiling when a server address is
// configured. Returns nil with no profiler otherwise.
func StartProfiler(appName, serverAddress string) (*pyroscope.Profiler, error) {
	if serverAddress == "" {
		return nil, nil
	}

	return pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}
