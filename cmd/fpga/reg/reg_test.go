/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package reg

import (
	"strings"
	"testing"
)

func TestWriteCommand(t *testing.T) {
	cmd := NewWriteCommand()
	if !strings.HasPrefix(cmd.Short, "Record register value") {
		t.Fatalf("write help does not say the value is only recorded: %q", cmd.Short)
	}
	for _, name := range []string{DeviceOptionName, AddrOptionName, ValueOptionName} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("missing flag %s", name)
		}
	}
}
