package driver

import "testing"

func TestParseReply(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		ok    bool
		raw   string
		key   string
		value string
	}{
		{
			name: "bridge example", in: ">foo *bar = ?#  *bar=77",
			ok: true, raw: ">foo *bar = ?#  *bar=77", key: "bar", value: "77",
		},
		{
			name: "model name echo", in: "\r\n>*modelname=?#\r\n*modelname=W1070\r\n",
			ok: true, raw: ">*modelname=?#\r\n*modelname=W1070", key: "modelname", value: "W1070",
		},
		{
			name: "power echo", in: ">*pow=on#*pow=ON#",
			ok: false,
		},
		{
			name: "power query", in: ">*pow=?# *POW=ON#",
			ok: true, raw: ">*pow=?# *POW=ON", key: "POW", value: "ON",
		},
		{
			name: "value stops at punctuation", in: ">x *a=?#*a=ab12-cd",
			ok: true, raw: ">x *a=?#*a=ab12", key: "a", value: "ab12",
		},
		{
			name: "spaces around name equals", in: ">*a = ?# *name   =V1",
			ok: true, raw: ">*a = ?# *name   =V1", key: "name", value: "V1",
		},
		{
			name: "space after value equals is not allowed", in: ">*a=?# *b= 1",
			ok: false,
		},
		{
			name: "illegal format from standby projector", in: ">*modelname=?#\r\n Illegal format",
			ok: false,
		},
		{
			name: "no prompt", in: "*modelname=?# *modelname=W1070",
			ok: false,
		},
		{
			name: "prompt on a later line", in: "garbage\n>*modelname=?# *modelname=HT2050",
			ok: true, raw: ">*modelname=?# *modelname=HT2050", key: "modelname", value: "HT2050",
		},
		{
			name: "right-most star on the prompt line wins", in: ">*a=?# *b=1 *c=?# *d=2",
			ok: true, raw: ">*a=?# *b=1 *c=?# *d=2", key: "d", value: "2",
		},
		{
			name: "prompt line may not wrap before the query", in: ">abc\n*a=?# *b=1",
			ok: false,
		},
		{
			name: "empty", in: "",
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseReply(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseReply(%q) ok = %v, want %v (got %+v)", tt.in, ok, tt.ok, got)
			}
			if !ok {
				return
			}
			if got.Raw != tt.raw || got.Name != tt.key || got.Value != tt.value {
				t.Errorf("ParseReply(%q) = %+v, want raw=%q name=%q value=%q", tt.in, got, tt.raw, tt.key, tt.value)
			}
		})
	}
}
