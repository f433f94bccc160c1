package protocol

import "encoding/json"

// Action identifies a worker command kind.
type Action string

const (
	ActionCheckFFmpeg       Action = "check_ffmpeg"
	ActionScanDirectory     Action = "scan_directory"
	ActionGetFileInfo       Action = "get_file_info"
	ActionConvertFiles      Action = "convert_files"
	ActionGenerateSubtitles Action = "generate_subtitles"
	ActionDownloadSubtitles Action = "download_subtitles"
	ActionSearchSubtitles   Action = "search_subtitles"
	ActionPreviewRename     Action = "preview_rename"
	ActionRenameFiles       Action = "rename_files"
	ActionUpdateSettings    Action = "update_settings"
	ActionStop              Action = "stop"
	ActionShutdown          Action = "shutdown"
)

// Valid reports whether the action belongs to the closed command set.
func (a Action) Valid() bool {
	switch a {
	case ActionCheckFFmpeg, ActionScanDirectory, ActionGetFileInfo,
		ActionConvertFiles, ActionGenerateSubtitles, ActionDownloadSubtitles,
		ActionSearchSubtitles, ActionPreviewRename, ActionRenameFiles,
		ActionUpdateSettings, ActionStop, ActionShutdown:
		return true
	default:
		return false
	}
}

// Streaming reports whether the worker answers this action with progress
// responses before the terminal one.
func (a Action) Streaming() bool {
	switch a {
	case ActionConvertFiles, ActionGenerateSubtitles:
		return true
	default:
		return false
	}
}

// Payload is implemented by the per-action parameter structs.
type Payload interface {
	BridgeAction() Action
}

// CheckFFmpeg asks the worker whether its encoder toolchain is usable.
type CheckFFmpeg struct{}

func (CheckFFmpeg) BridgeAction() Action { return ActionCheckFFmpeg }

// ScanDirectory lists media files under a directory.
type ScanDirectory struct {
	Path       string   `json:"path"`
	Recursive  bool     `json:"recursive,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
}

func (ScanDirectory) BridgeAction() Action { return ActionScanDirectory }

// GetFileInfo fetches container/stream metadata for one file.
type GetFileInfo struct {
	FilePath string `json:"file_path"`
}

func (GetFileInfo) BridgeAction() Action { return ActionGetFileInfo }

// ConvertFiles transcodes a batch of files. Settings shape is owned by the
// worker; the bridge carries it opaquely.
type ConvertFiles struct {
	FilePaths []string        `json:"file_paths"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

func (ConvertFiles) BridgeAction() Action { return ActionConvertFiles }

// GenerateSubtitles runs speech-to-text subtitle generation.
type GenerateSubtitles struct {
	FilePaths []string `json:"file_paths"`
	Language  string   `json:"language,omitempty"`
	Model     string   `json:"model,omitempty"`
}

func (GenerateSubtitles) BridgeAction() Action { return ActionGenerateSubtitles }

// DownloadSubtitles fetches subtitles from a provider configured in the worker.
type DownloadSubtitles struct {
	FilePaths []string `json:"file_paths"`
	Languages []string `json:"languages,omitempty"`
	Provider  string   `json:"provider,omitempty"`
}

func (DownloadSubtitles) BridgeAction() Action { return ActionDownloadSubtitles }

// SearchSubtitles queries a provider without downloading.
type SearchSubtitles struct {
	Query     string   `json:"query"`
	Languages []string `json:"languages,omitempty"`
}

func (SearchSubtitles) BridgeAction() Action { return ActionSearchSubtitles }

// PreviewRename computes metadata-based rename targets without touching disk.
type PreviewRename struct {
	FilePaths []string `json:"file_paths"`
	Pattern   string   `json:"pattern,omitempty"`
}

func (PreviewRename) BridgeAction() Action { return ActionPreviewRename }

// RenameFiles applies metadata-based renames.
type RenameFiles struct {
	FilePaths []string `json:"file_paths"`
	Pattern   string   `json:"pattern,omitempty"`
}

func (RenameFiles) BridgeAction() Action { return ActionRenameFiles }

// UpdateSettings pushes a new settings document into the worker.
type UpdateSettings struct {
	Settings json.RawMessage `json:"settings"`
}

func (UpdateSettings) BridgeAction() Action { return ActionUpdateSettings }

// Stop asks a busy worker to abandon its current operation. The worker
// interprets it itself; the protocol has no preemption primitive.
type Stop struct{}

func (Stop) BridgeAction() Action { return ActionStop }

// Shutdown asks the worker process to exit cleanly.
type Shutdown struct{}

func (Shutdown) BridgeAction() Action { return ActionShutdown }
