package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medflow/app/objects"
	"medflow/app/storage"
	"medflow/pkg/contextx"
)

func newTestArtifactResolver(instances *fakeInstanceRepository) (*ArtifactResolver, *storage.MemoryService) {
	store := storage.NewMemoryService()
	return NewArtifactResolver(instances, store), store
}

func instanceWithTask(task objects.TaskExecution) *fakeInstanceRepository {
	return newFakeInstanceRepository(&objects.WorkflowInstance{
		ID:        "wi1",
		PayloadID: "pay1",
		BucketID:  "bucket",
		Tasks:     []objects.TaskExecution{task},
	})
}

func TestConvertOutputDirVariable(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	instances := instanceWithTask(objects.TaskExecution{
		TaskID: "T1", OutputDirectory: "pay1/workflows/wi1/ex1",
	})
	resolver, _ := newTestArtifactResolver(instances)

	artifacts := []objects.Artifact{{Name: "x", Value: "foo context.executions.T1.output_dir"}}
	paths := resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", false)
	asserter.Equal(map[string]string{"x": "pay1/workflows/wi1/ex1"}, paths)
}

func TestConvertUnresolvableTaskSkippedOrFails(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	instances := instanceWithTask(objects.TaskExecution{TaskID: "T1"})
	resolver, _ := newTestArtifactResolver(instances)

	artifacts := []objects.Artifact{{Name: "x", Value: "{{ context.executions.missing.output_dir }}"}}

	paths := resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", false)
	asserter.NotContains(paths, "x")
	asserter.Empty(paths)

	paths, ok := resolver.TryConvert(ctx, artifacts, "pay1", "wi1", "bucket", false)
	asserter.False(ok)
	asserter.Empty(paths)
}

func TestTryConvertOptionalArtifactSkipped(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	instances := instanceWithTask(objects.TaskExecution{TaskID: "T1", OutputDirectory: "dir1"})
	resolver, _ := newTestArtifactResolver(instances)

	optional := false
	artifacts := []objects.Artifact{
		{Name: "x", Value: "{{ context.executions.T1.output_dir }}"},
		{Name: "y", Value: "{{ context.executions.missing.output_dir }}", Mandatory: &optional},
	}

	paths, ok := resolver.TryConvert(ctx, artifacts, "pay1", "wi1", "bucket", false)
	asserter.True(ok)
	asserter.Equal(map[string]string{"x": "dir1"}, paths)
}

func TestConvertInputDicomVariable(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	resolver, store := newTestArtifactResolver(newFakeInstanceRepository())

	artifacts := []objects.Artifact{{Name: "dicom", Value: "{{ context.input.dicom }}"}}

	paths := resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", false)
	asserter.Equal(map[string]string{"dicom": "pay1/dcm"}, paths)

	// with existence checks on, the path only resolves once data is there
	paths = resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", true)
	asserter.Empty(paths)

	store.Put("bucket", "pay1/dcm/file1.dcm", []byte("dicom"))
	paths = resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", true)
	asserter.Equal(map[string]string{"dicom": "pay1/dcm"}, paths)
}

func TestConvertReferencedOutputArtifact(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	instances := instanceWithTask(objects.TaskExecution{
		TaskID:          "T1",
		OutputArtifacts: map[string]string{"seg": "pay1/workflows/wi1/ex1/seg"},
	})
	resolver, _ := newTestArtifactResolver(instances)

	artifacts := []objects.Artifact{{Name: "in", Value: "{{ context.executions.T1.artifacts.seg }}"}}
	paths := resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", false)

	// the resolved entry carries the referenced artifact's name
	asserter.Equal(map[string]string{"seg": "pay1/workflows/wi1/ex1/seg"}, paths)

	missing := []objects.Artifact{{Name: "in", Value: "{{ context.executions.T1.artifacts.other }}"}}
	asserter.Empty(resolver.Convert(ctx, missing, "pay1", "wi1", "bucket", false))
}

func TestConvertBlankArtifactValueSkipped(t *testing.T) {
	asserter := assert.New(t)
	ctx := contextx.NewContext()

	resolver, _ := newTestArtifactResolver(newFakeInstanceRepository())

	artifacts := []objects.Artifact{
		{Name: "x", Value: ""},
		{Name: "", Value: "{{ context.input.dicom }}"},
		{Name: "y", Value: "no-variable-here"},
	}
	asserter.Empty(resolver.Convert(ctx, artifacts, "pay1", "wi1", "bucket", false))
}
