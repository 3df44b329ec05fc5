package metrics

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SystemInfo describes the host a service instance runs on
type SystemInfo struct {
	Hostname         string
	OS               string
	OSVersion        string
	Arch             string
	GoVersion        string
	CPULogical       int
	TotalMemoryMB    uint64
	InContainer      bool
	ContainerRuntime string
}

var serviceInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "service_info",
	Help: "Constant 1, labelled with the service and host it runs on.",
}, []string{"service", "go_version", "os", "arch", "container"})

// CaptureSystemInfo gathers host details. Missing sources leave fields empty.
func CaptureSystemInfo() *SystemInfo {
	info := &SystemInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPULogical: runtime.NumCPU(),
		GoVersion:  runtime.Version(),
		OSVersion:  runtime.GOOS,
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}

	info.InContainer, info.ContainerRuntime = detectContainer()

	if runtime.GOOS == "linux" {
		if v := osRelease("/etc/os-release"); v != "" {
			info.OSVersion = v
		}
		info.TotalMemoryMB = memTotalMB("/proc/meminfo")
	}

	return info
}

// RecordServiceInfo exports info as the service_info gauge
func RecordServiceInfo(service string, info *SystemInfo) {
	serviceInfo.WithLabelValues(service, info.GoVersion, info.OS, info.Arch, info.ContainerRuntime).Set(1)
}

// detectContainer checks if running in a container
func detectContainer() (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "docker"
	}
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true, "kubernetes"
	}

	// Check cgroup for container indicators
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		switch {
		case strings.Contains(content, "kubepods"):
			return true, "kubernetes"
		case strings.Contains(content, "docker"):
			return true, "docker"
		case strings.Contains(content, "containerd"):
			return true, "containerd"
		}
	}

	return false, ""
}

// osRelease reads PRETTY_NAME, falling back to NAME + VERSION
func osRelease(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var name, version string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "PRETTY_NAME":
			return value
		case "NAME":
			name = value
		case "VERSION":
			version = value
		}
	}
	return strings.TrimSpace(name + " " + version)
}

// memTotalMB parses MemTotal out of a meminfo file
func memTotalMB(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return 0
			}
			return kb / 1024
		}
	}
	return 0
}
