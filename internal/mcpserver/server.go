// Package mcpserver exposes the annotation pipeline as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/video-stream/annotator/internal/pipeline"
	"github.com/video-stream/annotator/internal/session"
)

// DefaultSession is the session tools act on when no session_id is given.
const DefaultSession = "mcp"

type Server struct {
	pipeline *pipeline.Pipeline
	sessions *session.Manager
	mcp      *server.MCPServer
}

func New(p *pipeline.Pipeline, version string) *Server {
	s := &Server{
		pipeline: p,
		sessions: p.Sessions(),
		mcp:      server.NewMCPServer("annotator", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Printf("[mcp] serving on stdio")
	return server.ServeStdio(s.mcp)
}

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Description("Annotation session to act on (default \""+DefaultSession+"\")"))
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("load_video",
		mcp.WithDescription("Load a video from the media library into the session"),
		mcp.WithString("video_path", mcp.Required(), mcp.Description("Path relative to the media root")),
		sessionArg(),
	), s.loadVideo)

	s.mcp.AddTool(mcp.NewTool("whisper_transcribe",
		mcp.WithDescription("Transcribe the loaded video into timed segments"),
		mcp.WithString("engine", mcp.Description("Transcription engine; empty uses the default")),
		mcp.WithString("language", mcp.Description("Language code or \"auto\"")),
		mcp.WithString("model", mcp.Description("Engine-specific model name")),
		sessionArg(),
	), s.transcribe)

	s.mcp.AddTool(mcp.NewTool("speaker_identification",
		mcp.WithDescription("Assign speaker labels to the session's segments"),
		mcp.WithBoolean("denoise", mcp.Description("Denoise audio before embedding")),
		mcp.WithNumber("denoise_prop", mcp.Description("Denoise proportion within [0,1]")),
		mcp.WithNumber("verification_threshold", mcp.Description("Speaker verification threshold within [0,1]")),
		sessionArg(),
	), s.identifySpeakers)

	s.mcp.AddTool(mcp.NewTool("get_segments",
		mcp.WithDescription("List the labelable segments of the current document"),
		sessionArg(),
	), s.getSegments)

	s.mcp.AddTool(mcp.NewTool("update_segment_speaker",
		mcp.WithDescription("Set the speaker of one segment"),
		mcp.WithNumber("segment_id", mcp.Required()),
		mcp.WithString("speaker", mcp.Required()),
		sessionArg(),
	), s.updateSpeaker)

	s.mcp.AddTool(mcp.NewTool("update_segment_text",
		mcp.WithDescription("Replace the text of one segment"),
		mcp.WithNumber("segment_id", mcp.Required()),
		mcp.WithString("text", mcp.Required()),
		sessionArg(),
	), s.updateText)

	s.mcp.AddTool(mcp.NewTool("export_labels",
		mcp.WithDescription("Export every segment as speaker/start/end/text entries sorted by start"),
		sessionArg(),
	), s.exportLabels)

	s.mcp.AddTool(mcp.NewTool("upload_segments",
		mcp.WithDescription("Import a JSON array of speaker/start/end/text entries as the session's results"),
		mcp.WithString("segments_json", mcp.Required(), mcp.Description("The entries as a JSON array")),
		sessionArg(),
	), s.uploadSegments)
}

func sessionID(req mcp.CallToolRequest) string {
	return req.GetString("session_id", DefaultSession)
}

// jsonResult renders v as the tool's text content.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// errorResult reports a failed operation to the client as a tool error.
func errorResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) active(req mcp.CallToolRequest) (*session.Session, error) {
	return s.sessions.Active(sessionID(req))
}

func (s *Server) loadVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("video_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.sessions.LoadVideo(ctx, sessionID(req), path)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(info)
}

func (s *Server) transcribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.active(req)
	if err != nil {
		return errorResult(err)
	}
	opts := pipeline.TranscribeOptions{
		Engine:   req.GetString("engine", ""),
		Language: req.GetString("language", ""),
		Model:    req.GetString("model", ""),
	}
	res, err := s.pipeline.Transcribe(ctx, sess, opts, nil)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]interface{}{
		"segments":     res.Segments,
		"results_path": res.ResultsPath,
		"audio_path":   res.AudioPath,
		"language":     res.Language,
	})
}

func (s *Server) identifySpeakers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.active(req)
	if err != nil {
		return errorResult(err)
	}
	cfg := s.pipeline.DiarizeDefaults()
	cfg.Denoise = req.GetBool("denoise", cfg.Denoise)
	cfg.DenoiseProportion = req.GetFloat("denoise_prop", cfg.DenoiseProportion)
	cfg.VerificationThreshold = req.GetFloat("verification_threshold", cfg.VerificationThreshold)

	res, err := s.pipeline.IdentifySpeakers(ctx, sess, cfg)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res.Document)
}

func (s *Server) getSegments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.active(req)
	if err != nil {
		return errorResult(err)
	}
	segs, err := s.pipeline.SegmentViews(sess)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(segs)
}

func (s *Server) updateSpeaker(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("segment_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	speaker, err := req.RequireString("speaker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.active(req)
	if err != nil {
		return errorResult(err)
	}
	if err := s.pipeline.SetSpeaker(sess, id, speaker); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText("Speaker updated successfully"), nil
}

func (s *Server) updateText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("segment_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.active(req)
	if err != nil {
		return errorResult(err)
	}
	if err := s.pipeline.SetText(sess, id, text); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText("Transcript text updated successfully"), nil
}

func (s *Server) exportLabels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.active(req)
	if err != nil {
		return errorResult(err)
	}
	entries, err := s.pipeline.Export(sess)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(entries)
}

func (s *Server) uploadSegments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("segments_json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.sessions.Ensure(sessionID(req))
	if err != nil {
		return errorResult(err)
	}
	res, err := s.pipeline.Import(sess, []byte(raw))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}
