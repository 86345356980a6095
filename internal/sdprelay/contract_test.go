package sdprelay

import (
	"encoding/json"
	"testing"
)

func TestEncodeRequest_WireShape(t *testing.T) {
	data, err := EncodeRequest("v=0\r\n")
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fields) != 2 || fields["type"] != "webrtc" || fields["sdp"] != "v=0\r\n" {
		t.Fatalf("request=%s, want exactly type=webrtc and sdp", data)
	}

	if _, err := EncodeRequest(""); err == nil {
		t.Fatalf("EncodeRequest(\"\") succeeded, want error")
	}
}

func TestParseRequest(t *testing.T) {
	if _, err := ParseRequest([]byte(`{"type":"webrtc","sdp":"v=0"}`)); err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	for _, raw := range []string{
		`{"type":"offer","sdp":"v=0"}`,
		`{"type":"webrtc"}`,
		`{"type":"webrtc","sdp":"v=0","extra":true}`,
		`{"type":"webrtc","sdp":"v=0"}{}`,
	} {
		if _, err := ParseRequest([]byte(raw)); err == nil {
			t.Fatalf("ParseRequest(%s) succeeded, want error", raw)
		}
	}
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		raw     string
		want    Response
		wantErr bool
	}{
		{raw: `{"sdp":"v=0 answer"}`, want: Response{SDP: "v=0 answer"}},
		{raw: `{"error":"no camera capacity"}`, want: Response{Error: "no camera capacity"}},
		{raw: `{"type":"webrtc","sdp":"v=0"}`, want: Response{SDP: "v=0"}},
		{raw: `{"sdp":"v=0","error":null}`, want: Response{SDP: "v=0"}},
		{raw: `{"sdp":"v=0","error":"x"}`, wantErr: true},
		{raw: `{}`, wantErr: true},
		{raw: `null`, wantErr: true},
		{raw: `{"sdp":""}`, wantErr: true},
		{raw: `{"error":""}`, wantErr: true},
		{raw: `{"sdp":["v=0"]}`, wantErr: true},
		{raw: `{"error":{"code":1}}`, wantErr: true},
		{raw: `[]`, wantErr: true},
		{raw: `{"sdp":"v=0"`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseResponse([]byte(tc.raw))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseResponse(%s)=%+v, want error", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseResponse(%s): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseResponse(%s)=%+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestResponseHelpersSatisfyContract(t *testing.T) {
	for _, resp := range []Response{Answer("v=0"), Reject("busy")} {
		data, err := json.Marshal(resp)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := ParseResponse(data); err != nil {
			t.Fatalf("ParseResponse(%s): %v", data, err)
		}
	}
}
