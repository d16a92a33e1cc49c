package lora

import "testing"

func TestParsePHYHexUnconfirmedUp(t *testing.T) {
	phy, err := ParsePHYHex("40F17DBE4900020001954378762B11FF0D")
	if err != nil {
		t.Fatalf("ParsePHYHex: %v", err)
	}
	if phy.MessageType() != UnconfirmedDataUp {
		t.Errorf("expected UnconfirmedDataUp, got %v", phy.MessageType())
	}
	if phy.Direction() != Uplink {
		t.Errorf("expected Uplink, got %v", phy.Direction())
	}
	if phy.MIC() != 0x0DFF112B {
		t.Errorf("MIC = %#08x, want 0x0dff112b", phy.MIC())
	}

	mac, err := ParseMACFromPHY(phy)
	if err != nil {
		t.Fatalf("ParseMACFromPHY: %v", err)
	}
	if mac.DeviceAddress() != 0x49BE7DF1 {
		t.Errorf("DeviceAddress = %#08x, want 0x49be7df1", mac.DeviceAddress())
	}
	if mac.FrameCounter() != 2 {
		t.Errorf("FrameCounter = %d, want 2", mac.FrameCounter())
	}
	if mac.FPort() != 1 {
		t.Errorf("FPort = %d, want 1", mac.FPort())
	}
	if len(mac.FramePayload()) != 4 {
		t.Errorf("FramePayload length = %d, want 4", len(mac.FramePayload()))
	}
}

func TestParsePHYTooShort(t *testing.T) {
	if _, err := ParsePHYBuffer([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for too-short PHY payload")
	}
}
