package agents

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

const (
	// maxRenderChars is the longest text a single rendering call accepts;
	// longer narratives are chunked.
	maxRenderChars = 5000

	// chunkWords is the chunk size for long narratives.
	chunkWords = 100
)

// Renderer turns a text chunk into an audio artifact and reports the file
// extension it produces.
type Renderer interface {
	Render(ctx context.Context, text string, w *os.File) error
	Extension() string
}

// NarrationAgent renders a synthesis narrative into audio artifacts. When
// no renderer is configured, or rendering fails, it writes placeholder
// transcript files instead so the pipeline always produces artifact
// references.
type NarrationAgent struct {
	renderer   Renderer
	dir        string
	publicPath string
	logger     zerolog.Logger
}

var _ Narrator = (*NarrationAgent)(nil)

// NewNarrationAgent creates a narration agent writing artifacts under dir.
// Returned references are URL paths below publicPath. renderer may be nil,
// in which case every artifact is a placeholder transcript.
func NewNarrationAgent(renderer Renderer, dir, publicPath string, logger zerolog.Logger) *NarrationAgent {
	return &NarrationAgent{
		renderer:   renderer,
		dir:        dir,
		publicPath: strings.TrimRight(publicPath, "/"),
		logger:     observability.WithStageContext(logger, "narration"),
	}
}

// Process renders the synthesis narrative. An empty narrative yields no
// artifacts; rendering failures yield placeholder artifacts, never errors.
func (a *NarrationAgent) Process(ctx context.Context, synthesis *domain.Synthesis) []string {
	if synthesis == nil || synthesis.Narrative == "" {
		return nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		a.logger.Error().Err(err).Str("dir", a.dir).Msg("cannot create audio directory")
		return nil
	}

	base := "synthesis_" + uuid.New().String()

	chunks := []string{synthesis.Narrative}
	if len(synthesis.Narrative) > maxRenderChars {
		chunks = chunkText(synthesis.Narrative, chunkWords)
	}

	refs := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		name := base
		if len(chunks) > 1 {
			name = fmt.Sprintf("%s_part%d", base, i+1)
		}
		refs = append(refs, a.renderChunk(ctx, name, chunk))
	}

	a.logger.Info().Int("artifacts", len(refs)).Msg("narration complete")
	return refs
}

// renderChunk writes one artifact, degrading to a transcript placeholder
// when no renderer is available or rendering fails.
func (a *NarrationAgent) renderChunk(ctx context.Context, name, text string) string {
	if a.renderer != nil {
		filename := name + a.renderer.Extension()
		f, err := os.Create(filepath.Join(a.dir, filename))
		if err == nil {
			renderErr := a.renderer.Render(ctx, text, f)
			closeErr := f.Close()
			if renderErr == nil && closeErr == nil {
				return a.ref(filename)
			}
			a.logger.Warn().AnErr("render", renderErr).AnErr("close", closeErr).
				Str("file", filename).Msg("audio rendering failed, writing placeholder")
			_ = os.Remove(filepath.Join(a.dir, filename))
		} else {
			a.logger.Warn().Err(err).Str("file", filename).Msg("cannot create audio file, writing placeholder")
		}
	}

	filename := name + ".txt"
	if err := os.WriteFile(filepath.Join(a.dir, filename), []byte(text), 0o644); err != nil {
		a.logger.Error().Err(err).Str("file", filename).Msg("cannot write placeholder artifact")
	}
	return a.ref(filename)
}

// ref converts an artifact filename into its public URL path.
func (a *NarrationAgent) ref(filename string) string {
	return path.Join(a.publicPath, filename)
}

// chunkText splits text into chunks of at most maxWords words.
func chunkText(text string, maxWords int) []string {
	words := strings.Fields(text)
	var chunks []string
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
