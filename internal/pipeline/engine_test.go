package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alleneee/docingest/internal/model"
)

type fakeProcessor struct {
	name  string
	types []model.FileType
	fn    func(pc *Context) error
}

func (p *fakeProcessor) Name() string                         { return p.name }
func (p *fakeProcessor) SupportedFileTypes() []model.FileType { return p.types }
func (p *fakeProcessor) Process(_ context.Context, pc *Context) error {
	if p.fn != nil {
		return p.fn(pc)
	}
	return nil
}

func TestEngine_RunsStagesInOrder(t *testing.T) {
	var seen []Stage
	registry := NewRegistry()
	for _, stage := range []Stage{StageValidate, StageChunk, StageEmbed, StageIndex, StageFinalize} {
		s := stage
		registry.Register(s, &fakeProcessor{name: string(s), fn: func(pc *Context) error {
			seen = append(seen, s)
			return nil
		}})
	}

	engine := NewEngine(registry)
	pc := &Context{FileType: model.FileTypeTXT, RawContent: []byte("hi")}
	err := engine.Run(context.Background(), pc)
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageValidate, StageChunk, StageEmbed, StageIndex, StageFinalize}, seen)
}

func TestEngine_SkipsMarkdownNormalizeWhenPlanSaysNo(t *testing.T) {
	called := false
	registry := NewRegistry()
	registry.Register(StageValidate, &fakeProcessor{name: "validate"})
	registry.Register(StageMarkdownNormalize, &fakeProcessor{name: "md", fn: func(pc *Context) error {
		called = true
		return nil
	}})
	registry.Register(StageChunk, &fakeProcessor{name: "chunk"})
	registry.Register(StageEmbed, &fakeProcessor{name: "embed"})
	registry.Register(StageIndex, &fakeProcessor{name: "index"})
	registry.Register(StageFinalize, &fakeProcessor{name: "finalize"})

	engine := NewEngine(registry)
	pc := &Context{FileType: model.FileTypeTXT, RawContent: []byte("hi")}
	pc.Plan.ConvertToMarkdown = false
	err := engine.Run(context.Background(), pc)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestEngine_SurfacesStageNameOnFailure(t *testing.T) {
	boom := errors.New("boom")
	registry := NewRegistry()
	registry.Register(StageValidate, &fakeProcessor{name: "validate"})
	registry.Register(StageChunk, &fakeProcessor{name: "chunk", fn: func(pc *Context) error { return boom }})
	registry.Register(StageEmbed, &fakeProcessor{name: "embed"})
	registry.Register(StageIndex, &fakeProcessor{name: "index"})
	registry.Register(StageFinalize, &fakeProcessor{name: "finalize"})

	engine := NewEngine(registry)
	pc := &Context{FileType: model.FileTypeTXT, RawContent: []byte("hi")}
	err := engine.Run(context.Background(), pc)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageChunk, stageErr.Stage)
	assert.ErrorIs(t, err, boom)
}

func TestEngine_MissingProcessorIsValidationError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(StageValidate, &fakeProcessor{name: "validate"})

	engine := NewEngine(registry)
	pc := &Context{FileType: model.FileTypeTXT, RawContent: []byte("hi")}
	err := engine.Run(context.Background(), pc)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestEngine_OrdinalErrorPropagates(t *testing.T) {
	registry := NewRegistry()
	registry.Register(StageValidate, &fakeProcessor{name: "validate"})
	registry.Register(StageChunk, &fakeProcessor{name: "chunk", fn: func(pc *Context) error {
		return &OrdinalError{Ordinal: 5, Err: errors.New("segment 5 failed")}
	}})
	registry.Register(StageEmbed, &fakeProcessor{name: "embed"})
	registry.Register(StageIndex, &fakeProcessor{name: "index"})
	registry.Register(StageFinalize, &fakeProcessor{name: "finalize"})

	engine := NewEngine(registry)
	pc := &Context{FileType: model.FileTypeTXT, RawContent: []byte("hi")}
	err := engine.Run(context.Background(), pc)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.True(t, stageErr.HasOrdinal)
	assert.Equal(t, 5, stageErr.Ordinal)
}
