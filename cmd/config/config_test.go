package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/orbas1/radixgo/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Network.ID != "radixgo-mainnet" {
		t.Fatalf("unexpected network id: %s", AppConfig.Network.ID)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if AppConfig.Fee.ExecutionLimit != 50_000_000 {
		t.Fatalf("expected ExecutionLimit 50000000, got %d", AppConfig.Fee.ExecutionLimit)
	}
	if AppConfig.Network.ID != "radixgo-bootstrap" {
		t.Fatalf("expected network id override")
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("network:\n  id: sandbox\nfee:\n  execution_limit: 7\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Network.ID != "sandbox" {
		t.Fatalf("expected network id sandbox, got %s", AppConfig.Network.ID)
	}
	if AppConfig.Fee.ExecutionLimit != 7 {
		t.Fatalf("expected ExecutionLimit 7, got %d", AppConfig.Fee.ExecutionLimit)
	}
}
