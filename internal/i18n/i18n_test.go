package i18n

import "testing"

func TestNew_FallsBackOnUnsupportedLocale(t *testing.T) {
	tr := New("xx-unsupported")
	if tr.Locale() != DefaultLocale {
		t.Errorf("locale = %q, want %q", tr.Locale(), DefaultLocale)
	}
}

func TestT_UsesSelectedLocale(t *testing.T) {
	tr := New("ja")
	if got := tr.T(KeyAgentStopped); got != "エージェントを停止しました。" {
		t.Errorf("T(KeyAgentStopped) = %q", got)
	}
}

func TestT_FallsBackToEnglishForMissingKeyInLocale(t *testing.T) {
	tr := New("ja")
	if got := tr.T(Key("nonexistent.key")); got != "nonexistent.key" {
		t.Errorf("T(unknown) = %q, want the raw key", got)
	}
}

func TestSupported(t *testing.T) {
	if !Supported("en") || !Supported("ja") {
		t.Error("expected en and ja to be supported")
	}
	if Supported("xx") {
		t.Error("xx should not be supported")
	}
}
