package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/diarize"
	"github.com/video-stream/annotator/internal/labels"
	"github.com/video-stream/annotator/internal/pipeline"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/transcript"
	"github.com/video-stream/annotator/internal/whisper"
)

type stubASR struct{}

func (stubASR) Name() string { return "stub" }

func (stubASR) Transcribe(ctx context.Context, req whisper.TranscribeRequest, progress func(float64)) (*whisper.TranscribeResult, error) {
	audio := filepath.Join(req.OutputDir, "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0644); err != nil {
		return nil, err
	}
	doc := &transcript.Document{Segments: []transcript.Segment{{
		ID: 0, Start: 0, End: 2, Text: "Hi.",
		Extra: map[string]json.RawMessage{"tokens": json.RawMessage(`[50364, 2421]`)},
	}}}
	return &whisper.TranscribeResult{Document: doc, AudioPath: audio, Language: "en"}, nil
}

type speakerProcessor struct{ params diarize.Params }

func (p *speakerProcessor) Process(ctx context.Context) (*transcript.Document, error) {
	doc, err := artifact.Read(p.params.TranscriptPath)
	if err != nil {
		return nil, err
	}
	for i := range doc.Segments {
		doc.Segments[i].Speaker = "SPEAKER_00"
	}
	return doc, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	media := t.TempDir()
	if err := os.WriteFile(filepath.Join(media, "talk.mp4"), []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	factory := func(p diarize.Params) (diarize.Processor, error) { return &speakerProcessor{params: p}, nil }
	p := pipeline.New(session.NewManager(media, nil), stubASR{}, diarize.NewCache(factory), nil, pipeline.Options{
		DataPath: t.TempDir(),
		Language: "auto",
		Diarize:  diarize.DefaultConfig(),
	})
	return New(p, "test")
}

type toolFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

func callTool(t *testing.T, fn toolFunc, args map[string]interface{}) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("tool returned protocol error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestToolsTalkScenario(t *testing.T) {
	s := newTestServer(t)

	if out, isErr := callTool(t, s.loadVideo, map[string]interface{}{"video_path": "talk.mp4"}); isErr {
		t.Fatalf("load_video: %s", out)
	}
	if out, isErr := callTool(t, s.transcribe, nil); isErr {
		t.Fatalf("whisper_transcribe: %s", out)
	}
	if out, isErr := callTool(t, s.updateSpeaker, map[string]interface{}{"segment_id": 0, "speaker": "A"}); isErr {
		t.Fatalf("update_segment_speaker: %s", out)
	}

	out, isErr := callTool(t, s.exportLabels, nil)
	if isErr {
		t.Fatalf("export_labels: %s", out)
	}
	var entries []labels.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatal(err)
	}
	want := labels.Entry{Speaker: "A", Start: 0, End: 2, Text: "Hi."}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("export = %+v", entries)
	}
}

func TestToolsUseSessionArgument(t *testing.T) {
	s := newTestServer(t)

	callTool(t, s.loadVideo, map[string]interface{}{"video_path": "talk.mp4", "session_id": "other"})
	if out, isErr := callTool(t, s.getSegments, nil); !isErr || out != session.ErrNoActiveSession.Error() {
		t.Errorf("default session should be empty, got %q", out)
	}
	if out, isErr := callTool(t, s.transcribe, map[string]interface{}{"session_id": "other"}); isErr {
		t.Errorf("transcribe other session: %s", out)
	}
}

func TestUploadAndIdentify(t *testing.T) {
	s := newTestServer(t)

	out, isErr := callTool(t, s.uploadSegments, map[string]interface{}{
		"segments_json": `[{"speaker": null, "start": "1.5", "end": 2, "text": "hello"}]`,
	})
	if isErr {
		t.Fatalf("upload_segments: %s", out)
	}
	if !strings.Contains(out, `"segments_count": 1`) {
		t.Errorf("unexpected upload result %s", out)
	}

	if out, isErr := callTool(t, s.uploadSegments, map[string]interface{}{"segments_json": `{}`}); !isErr {
		t.Errorf("object upload should fail, got %s", out)
	}

	// Imported sessions have no audio to identify speakers from.
	if out, isErr := callTool(t, s.identifySpeakers, nil); !isErr {
		t.Errorf("identification without audio should fail, got %s", out)
	}
	if out, isErr := callTool(t, s.identifySpeakers, map[string]interface{}{"verification_threshold": 5}); !isErr || !strings.Contains(out, "threshold") {
		t.Errorf("expected threshold validation error, got %s", out)
	}
}

func TestMissingArguments(t *testing.T) {
	s := newTestServer(t)
	if _, isErr := callTool(t, s.loadVideo, nil); !isErr {
		t.Error("load_video without video_path should fail")
	}
	if _, isErr := callTool(t, s.updateText, map[string]interface{}{"segment_id": 0}); !isErr {
		t.Error("update_segment_text without text should fail")
	}
}

func TestGetSegmentsShape(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s.loadVideo, map[string]interface{}{"video_path": "talk.mp4"})
	callTool(t, s.transcribe, nil)

	out, isErr := callTool(t, s.getSegments, nil)
	if isErr {
		t.Fatalf("get_segments: %s", out)
	}
	var segs []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &segs); err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected one segment, got %v", segs)
	}
	if speaker, ok := segs[0]["speaker"]; !ok || speaker != "" {
		t.Errorf("speaker should be present and empty, got %v", segs[0])
	}
	if _, ok := segs[0]["tokens"]; ok {
		t.Errorf("engine extras should not be listed: %v", segs[0])
	}
}
