package domain

import "testing"

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Variants: []VariantSpec{
			{Field: "image_small"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateJobRequest{
		SourceType: SourceTypeLocalFile,
		Variants: []VariantSpec{
			{Field: "image_small"},
		},
	}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for local_file object_key")
	}

	unsupportedSourceType := CreateJobRequest{
		SourceType: "http_url",
		Variants: []VariantSpec{
			{Field: "image_small"},
		},
	}
	if err := unsupportedSourceType.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}

	noVariants := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
	}
	if err := noVariants.Validate(); err == nil {
		t.Fatal("expected validation error for a request without variants")
	}
}

func TestVariantSpecValidate(t *testing.T) {
	valid := VariantSpec{Field: "image_medium", Width: 128, Crop: "center", Quality: 80}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid spec, got error: %v", err)
	}

	cases := []struct {
		name string
		spec VariantSpec
	}{
		{"missing field", VariantSpec{Width: 100}},
		{"negative width", VariantSpec{Field: "image", Width: -1}},
		{"bad crop", VariantSpec{Field: "image", Crop: "diagonal"}},
		{"quality too high", VariantSpec{Field: "image", Quality: 96}},
		{"quality too low", VariantSpec{Field: "image", Quality: -3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.spec.Validate(); err == nil {
				t.Fatalf("expected validation error for %+v", tc.spec)
			}
		})
	}
}
