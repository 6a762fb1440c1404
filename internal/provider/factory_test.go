package provider

import (
	"context"
	"testing"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

func hostedConfig(indexName string) domain.ProviderConfig {
	return domain.ProviderConfig{
		Kind:       domain.ProviderHosted,
		Dimensions: 768,
		Hosted:     &domain.HostedConfig{BaseURL: "http://hosted.local", IndexName: indexName},
	}
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	f := NewFactory(Deps{})

	_, err := f.Build(context.Background(), domain.ProviderConfig{Kind: "graph"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildRejectsMissingDSN(t *testing.T) {
	f := NewFactory(Deps{})

	_, err := f.Build(context.Background(), domain.ProviderConfig{Kind: domain.ProviderRelational})
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildMemoizesByStoreIdentity(t *testing.T) {
	f := NewFactory(Deps{})

	first, err := f.Build(context.Background(), hostedConfig("chunks"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := f.Build(context.Background(), hostedConfig("chunks"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if first != second {
		t.Fatalf("same store identity must return the memoized provider")
	}

	other, err := f.Build(context.Background(), hostedConfig("archive"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if other == first {
		t.Fatalf("different index name must construct a distinct provider")
	}
}

func TestProviderIDIgnoresTuningKnobs(t *testing.T) {
	a := hostedConfig("chunks")
	b := hostedConfig("chunks")
	b.Dimensions = 1024

	if ProviderID(a) != ProviderID(b) {
		t.Fatalf("dimensions must not change the provider id")
	}

	c := hostedConfig("archive")
	if ProviderID(a) == ProviderID(c) {
		t.Fatalf("index name must change the provider id")
	}
}
