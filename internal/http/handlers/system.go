package handlers

import (
	"context"
	"os"
	"runtime"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/clipforge/clipforge/internal/config"
)

// SystemHandler handles the system information endpoint.
type SystemHandler struct {
	storage config.StorageConfig
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(storage config.StorageConfig) *SystemHandler {
	return &SystemHandler{storage: storage}
}

// DiskUsageResponse reports usage of one storage path.
type DiskUsageResponse struct {
	Path        string  `json:"path" doc:"Filesystem path"`
	TotalGB     float64 `json:"total_gb" doc:"Total capacity in GiB"`
	FreeGB      float64 `json:"free_gb" doc:"Free space in GiB"`
	UsedPercent float64 `json:"used_percent" doc:"Used space percentage"`
}

// SystemInfoResponse is the body of the system info endpoint.
type SystemInfoResponse struct {
	GoVersion  string `json:"go_version" doc:"Go runtime version"`
	NumCPU     int    `json:"num_cpu" doc:"Logical CPU count"`
	Goroutines int    `json:"goroutines" doc:"Current goroutine count"`

	Load1Min  float64 `json:"load_1min,omitempty" doc:"1 minute load average"`
	Load5Min  float64 `json:"load_5min,omitempty" doc:"5 minute load average"`
	Load15Min float64 `json:"load_15min,omitempty" doc:"15 minute load average"`

	TotalMemoryMB   float64 `json:"total_memory_mb,omitempty" doc:"System memory in MiB"`
	UsedMemoryMB    float64 `json:"used_memory_mb,omitempty" doc:"Used system memory in MiB"`
	ProcessMemoryMB float64 `json:"process_memory_mb,omitempty" doc:"Resident process memory in MiB"`

	Storage []DiskUsageResponse `json:"storage,omitempty" doc:"Disk usage for the storage roots"`
}

// SystemInfoInput is the input for the system info endpoint.
type SystemInfoInput struct{}

// SystemInfoOutput is the output for the system info endpoint.
type SystemInfoOutput struct {
	Body SystemInfoResponse
}

// Register registers the system routes with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystemInfo",
		Method:      "GET",
		Path:        "/api/v1/system",
		Summary:     "Get system information",
		Description: "Returns runtime, memory, load, and storage disk usage",
		Tags:        []string{"System"},
	}, h.GetSystemInfo)
}

// GetSystemInfo returns process and host information. Metrics that
// cannot be collected on the current platform are left zero.
func (h *SystemHandler) GetSystemInfo(ctx context.Context, input *SystemInfoInput) (*SystemInfoOutput, error) {
	resp := SystemInfoResponse{
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}

	if loadAvg, err := load.AvgWithContext(ctx); err == nil && loadAvg != nil {
		resp.Load1Min = loadAvg.Load1
		resp.Load5Min = loadAvg.Load5
		resp.Load15Min = loadAvg.Load15
	}

	if vmStat, err := mem.VirtualMemoryWithContext(ctx); err == nil && vmStat != nil {
		resp.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		resp.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
			resp.ProcessMemoryMB = float64(memInfo.RSS) / 1024 / 1024
		}
	}

	for _, path := range []string{h.storage.LibraryPath(), h.storage.OutputPath()} {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil || usage == nil {
			continue
		}
		resp.Storage = append(resp.Storage, DiskUsageResponse{
			Path:        path,
			TotalGB:     float64(usage.Total) / 1024 / 1024 / 1024,
			FreeGB:      float64(usage.Free) / 1024 / 1024 / 1024,
			UsedPercent: usage.UsedPercent,
		})
	}

	return &SystemInfoOutput{Body: resp}, nil
}
