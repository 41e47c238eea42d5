package intent_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-course/internal/ai"
	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/intent"
)

func TestDefault_HasEveryIntent(t *testing.T) {
	c, err := intent.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	for _, i := range ai.Intents {
		spec := c.Get(i)
		if spec.Intent() != i {
			t.Errorf("Get(%v).Intent() = %v", i, spec.Intent())
		}
	}
}

func TestDefault_StructuredIntentsHaveSchemas(t *testing.T) {
	c, err := intent.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	structured := map[ai.Intent]bool{
		ai.IntentStructure: true,
		ai.IntentGraph:     true,
		ai.IntentExam:      true,
	}
	for _, i := range ai.Intents {
		spec := c.Get(i)
		if got := spec.CompiledSchema() != nil; got != structured[i] {
			t.Errorf("%v has schema = %v, want %v", i, got, structured[i])
		}
	}
}

func TestDefault_SpeechUsesTTSModel(t *testing.T) {
	c, _ := intent.Default()
	spec := c.Get(ai.IntentSpeech)
	if !strings.Contains(spec.Model, "tts") {
		t.Errorf("speech model = %q, want a TTS model", spec.Model)
	}
	if spec.Voice == "" {
		t.Error("speech voice is empty")
	}
}

func TestRenderPrompt_Lesson(t *testing.T) {
	c, _ := intent.Default()
	spec := c.Get(ai.IntentLesson)

	out, err := spec.RenderPrompt(map[string]any{
		"Module": curriculum.Module{
			Title:              "Linear Equations",
			Topics:             []string{"variables", "balancing"},
			LearningObjectives: []string{"solve for x"},
		},
		"Depth": "Summary",
	})
	if err != nil {
		t.Fatalf("RenderPrompt() error = %v", err)
	}
	for _, want := range []string{"Linear Equations", "variables, balancing", "solve for x", "concise overview"} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSystem_ChatContext(t *testing.T) {
	c, _ := intent.Default()
	spec := c.Get(ai.IntentChat)

	withCtx, err := spec.RenderSystem(map[string]any{"Context": "Photosynthesis converts light."})
	if err != nil {
		t.Fatalf("RenderSystem() error = %v", err)
	}
	if !strings.Contains(withCtx, "Photosynthesis converts light.") {
		t.Errorf("system prompt missing lesson context:\n%s", withCtx)
	}

	without, _ := spec.RenderSystem(map[string]any{"Context": ""})
	if strings.Contains(without, "Current lesson") {
		t.Errorf("system prompt should omit the lesson header when context is empty:\n%s", without)
	}
}

func TestParse_MissingIntent(t *testing.T) {
	_, err := intent.Parse([]byte(`
intents:
  - name: structure-extraction
    prompt: hi
`))
	if err == nil {
		t.Fatal("Parse() should fail when intents are missing")
	}
}

func TestParse_UnknownIntent(t *testing.T) {
	_, err := intent.Parse([]byte(`
intents:
  - name: telepathy
`))
	if err == nil {
		t.Fatal("Parse() should fail on unknown intent names")
	}
}

func TestParse_BadTemplate(t *testing.T) {
	_, err := intent.Parse([]byte(`
intents:
  - name: structure-extraction
    prompt: "{{.Broken"
`))
	if err == nil {
		t.Fatal("Parse() should fail on a broken template")
	}
}

func TestLoad_FromFile(t *testing.T) {
	data, err := os.ReadFile("intents.yaml")
	if err != nil {
		t.Fatalf("reading embedded source: %v", err)
	}
	custom := strings.Replace(string(data), "voice: Kore", "voice: Puck", 1)
	path := filepath.Join(t.TempDir(), "intents.yaml")
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := intent.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Get(ai.IntentSpeech).Voice != "Puck" {
		t.Errorf("voice = %q, want Puck", loaded.Get(ai.IntentSpeech).Voice)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := intent.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestCatalog_Override(t *testing.T) {
	c, err := intent.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	c.Override(ai.IntentSpeech, "", "Puck")
	speech := c.Get(ai.IntentSpeech)
	if speech.Voice != "Puck" {
		t.Errorf("voice = %q, want Puck", speech.Voice)
	}
	if speech.Model != "gemini-2.5-flash-preview-tts" {
		t.Errorf("model = %q, empty override should keep the catalog model", speech.Model)
	}

	c.Override(ai.IntentChat, "gemini-2.5-pro", "")
	if got := c.Get(ai.IntentChat).Model; got != "gemini-2.5-pro" {
		t.Errorf("chat model = %q, want gemini-2.5-pro", got)
	}
}
