package directive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeEffects struct {
	sentFiles []string
	sendErr   error

	shotPath string
	shotErr  error
	shotApps []string
}

func (f *fakeEffects) SendFile(ctx context.Context, path string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentFiles = append(f.sentFiles, path)
	return nil
}

func (f *fakeEffects) Screenshot(ctx context.Context, appName string) (string, error) {
	f.shotApps = append(f.shotApps, appName)
	return f.shotPath, f.shotErr
}

func writeTemp(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessNoDirectives(t *testing.T) {
	fx := &fakeEffects{}
	text := "✅ Done. Created report.pdf in ~/docs."
	got, sent := Process(context.Background(), text, fx)
	if got != text {
		t.Errorf("text rewritten: %q", got)
	}
	if len(sent) != 0 || len(fx.sentFiles) != 0 {
		t.Errorf("unexpected sends: %v %v", sent, fx.sentFiles)
	}
}

func TestProcessSendFile(t *testing.T) {
	path := writeTemp(t, "report.pdf")
	fx := &fakeEffects{}

	got, sent := Process(context.Background(), "Here you go [SEND_FILE:"+path+"] enjoy", fx)

	if got != "Here you go 📎 report.pdf sent enjoy" {
		t.Errorf("got %q", got)
	}
	if len(sent) != 1 || sent[0] != "report.pdf" {
		t.Errorf("sent = %v", sent)
	}
	if len(fx.sentFiles) != 1 || fx.sentFiles[0] != path {
		t.Errorf("effects saw %v", fx.sentFiles)
	}
}

func TestProcessTwoFilesEachSentOnce(t *testing.T) {
	a := writeTemp(t, "a.txt")
	b := writeTemp(t, "b.txt")
	fx := &fakeEffects{}

	got, sent := Process(context.Background(),
		"[SEND_FILE:"+a+"]\n[SEND_FILE:"+b+"]", fx)

	if got != "📎 a.txt sent\n📎 b.txt sent" {
		t.Errorf("got %q", got)
	}
	if len(sent) != 2 || sent[0] != "a.txt" || sent[1] != "b.txt" {
		t.Errorf("sent = %v", sent)
	}
	if len(fx.sentFiles) != 2 {
		t.Errorf("effects saw %d sends, want 2", len(fx.sentFiles))
	}
}

func TestProcessFileNotFound(t *testing.T) {
	fx := &fakeEffects{}
	got, sent := Process(context.Background(), "[SEND_FILE:/no/such/file.txt]", fx)
	if got != "⚠️ File not found: /no/such/file.txt" {
		t.Errorf("got %q", got)
	}
	if len(sent) != 0 || len(fx.sentFiles) != 0 {
		t.Errorf("missing file was sent: %v", fx.sentFiles)
	}
}

func TestProcessFailureDoesNotAbortOthers(t *testing.T) {
	a := writeTemp(t, "ok.txt")
	fx := &fakeEffects{shotErr: errors.New("no display")}

	got, sent := Process(context.Background(),
		"[SEND_SCREENSHOT] then [SEND_FILE:"+a+"]", fx)

	if got != "⚠️ Screenshot capture failed then 📎 ok.txt sent" {
		t.Errorf("got %q", got)
	}
	if len(sent) != 1 || sent[0] != "ok.txt" {
		t.Errorf("sent = %v", sent)
	}
}

func TestProcessScreenshot(t *testing.T) {
	shot := writeTemp(t, "screen.png")
	fx := &fakeEffects{shotPath: shot}

	got, sent := Process(context.Background(), "[SEND_SCREENSHOT]", fx)
	if got != "📸 Screenshot sent" {
		t.Errorf("got %q", got)
	}
	if len(sent) != 1 || sent[0] != "screen.png" {
		t.Errorf("sent = %v", sent)
	}
	if len(fx.shotApps) != 1 || fx.shotApps[0] != "" {
		t.Errorf("apps = %v", fx.shotApps)
	}
}

func TestProcessScreenshotWithApp(t *testing.T) {
	shot := writeTemp(t, "safari.png")
	fx := &fakeEffects{shotPath: shot}

	_, _ = Process(context.Background(), "[SEND_SCREENSHOT:Safari]", fx)
	if len(fx.shotApps) != 1 || fx.shotApps[0] != "Safari" {
		t.Errorf("apps = %v", fx.shotApps)
	}
}

func TestProcessUnknownBracketsStayLiteral(t *testing.T) {
	fx := &fakeEffects{}
	for _, text := range []string{
		"[NOTE: remember this]",
		"array[0] = 5",
		"[SEND_FILE:/unterminated",
		"done [NEED_INPUT:already extracted upstream]",
	} {
		got, sent := Process(context.Background(), text, fx)
		if got != text {
			t.Errorf("Process(%q) = %q, want unchanged", text, got)
		}
		if len(sent) != 0 {
			t.Errorf("Process(%q) sent %v", text, sent)
		}
	}
}
