package signatures

import (
	"testing"

	"github.com/spf13/afero"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()

	sigs := Load(fs, "data/malware_signatures.txt")
	if len(sigs) != 12 {
		t.Fatalf("expected 12 default signatures, got %d", len(sigs))
	}
	if sigs[0] != "malicious_payload" {
		t.Errorf("first default = %q, want malicious_payload", sigs[0])
	}
	if sigs[11] != "malware" {
		t.Errorf("last default = %q, want malware", sigs[11])
	}
}

func TestLoadTrimsAndKeepsOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "  zeus \n\n\tmirai\nzeus\n   \nemotet"
	if err := afero.WriteFile(fs, "sigs.txt", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sigs := Load(fs, "sigs.txt")
	want := []string{"zeus", "mirai", "zeus", "emotet"}
	if len(sigs) != len(want) {
		t.Fatalf("Load = %v, want %v", sigs, want)
	}
	for i := range want {
		if sigs[i] != want[i] {
			t.Errorf("sigs[%d] = %q, want %q", i, sigs[i], want[i])
		}
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "sigs.txt", []byte("\n  \n\t\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sigs, usedDefault := LoadList(fs, "sigs.txt", Defaults())
	if !usedDefault {
		t.Error("expected defaults for a file with only blank lines")
	}
	if len(sigs) != 12 {
		t.Errorf("expected 12 signatures, got %d", len(sigs))
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	_, usedDefault := LoadList(afero.NewMemMapFs(), "", Defaults())
	if !usedDefault {
		t.Error("expected defaults for empty path")
	}
}

func TestLoadDropsInvalidUTF8(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "sigs.txt", []byte("tro\xffjan\nworm"), 0o644); err != nil {
		t.Fatal(err)
	}

	sigs := Load(fs, "sigs.txt")
	if len(sigs) != 2 || sigs[0] != "trojan" || sigs[1] != "worm" {
		t.Errorf("Load = %v, want [trojan worm]", sigs)
	}
}

func TestLoadBlacklist(t *testing.T) {
	fs := afero.NewMemMapFs()

	ips := LoadBlacklist(fs, "missing.txt")
	if len(ips) != 3 {
		t.Fatalf("expected 3 default IPs, got %d", len(ips))
	}

	if err := afero.WriteFile(fs, "ips.txt", []byte("1.2.3.4\n5.6.7.8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ips = LoadBlacklist(fs, "ips.txt")
	if len(ips) != 2 || ips[0] != "1.2.3.4" {
		t.Errorf("LoadBlacklist = %v, want [1.2.3.4 5.6.7.8]", ips)
	}
}

func TestDefaultsAreCopies(t *testing.T) {
	d := Defaults()
	d[0] = "changed"
	if Defaults()[0] != "malicious_payload" {
		t.Error("mutating Defaults() result changed the built-in list")
	}
}

func TestIsSuspiciousExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".exe", true},
		{".EXE", true},
		{".Ps1", true},
		{".scr", true},
		{".txt", false},
		{"exe", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsSuspiciousExtension(tt.ext); got != tt.want {
				t.Errorf("IsSuspiciousExtension(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}
