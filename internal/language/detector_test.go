package language

import "testing"

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Tag
	}{
		{
			name: "english sentence",
			text: "What are my rights if my employer refuses to pay maternity benefits?",
			want: "en",
		},
		{
			name: "hindi devanagari",
			text: "मुझे अपने पति से तलाक चाहिए, मेरे क्या अधिकार हैं और मुझे क्या करना चाहिए?",
			want: "hi",
		},
		{
			name: "bengali",
			text: "আমার স্বামী আমাকে মারধর করে, আমি আইনের কাছে কী সাহায্য পেতে পারি?",
			want: "bn",
		},
		{
			name: "tamil",
			text: "எனது கணவர் என்னை துன்புறுத்துகிறார், சட்டப்படி எனக்கு என்ன பாதுகாப்பு உள்ளது?",
			want: "ta",
		},
		{
			name: "empty string",
			text: "",
			want: English,
		},
		{
			name: "whitespace only",
			text: "   \n\t  ",
			want: English,
		},
		{
			name: "digits and punctuation",
			text: "498A",
			want: English,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

// Detection must be deterministic so retries and replays take the same
// translation path.
func TestDetectDeterministic(t *testing.T) {
	t.Parallel()

	text := "घरेलू हिंसा से महिलाओं का संरक्षण अधिनियम के तहत मुझे क्या अधिकार मिलते हैं?"
	first := Detect(text)
	for i := 0; i < 10; i++ {
		if got := Detect(text); got != first {
			t.Fatalf("Detect() not deterministic: got %q then %q", first, got)
		}
	}
}

func TestSupported(t *testing.T) {
	t.Parallel()

	for _, tag := range []Tag{"hi", "bn", "ta", "te", "mr", "gu", "ml", "pa", "kn", "or", "ur", "en"} {
		if !Supported(tag) {
			t.Errorf("Supported(%q) = false, want true", tag)
		}
	}
	for _, tag := range []Tag{"fr", "zh", ""} {
		if Supported(tag) {
			t.Errorf("Supported(%q) = true, want false", tag)
		}
	}
}
