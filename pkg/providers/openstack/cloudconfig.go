/*
Copyright 2024 the Unikorn Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package openstack

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gophercloud/utils/openstack/clientconfig"
	ini "gopkg.in/ini.v1"

	"sigs.k8s.io/yaml"
)

var (
	// ErrCloudConfiguration is returned when the cloud configuration is not
	// correctly formatted.
	ErrCloudConfiguration = errors.New("invalid cloud configuration")
)

// ApplicationCredential is what's needed to configure a client.
type ApplicationCredential struct {
	// Cloud is the name of the cloud in clouds.yaml.
	Cloud     string
	AuthURL   string
	Region    string
	Interface string
	ID        string
	Secret    string
}

// GenerateCloudsYAML creates a clouds.yaml for the credential.
func GenerateCloudsYAML(credential *ApplicationCredential) ([]byte, error) {
	cloud := clientconfig.Cloud{
		AuthType: clientconfig.AuthV3ApplicationCredential,
		AuthInfo: &clientconfig.AuthInfo{
			AuthURL:                     credential.AuthURL,
			ApplicationCredentialID:     credential.ID,
			ApplicationCredentialSecret: credential.Secret,
		},
		RegionName:         credential.Region,
		Interface:          credential.Interface,
		IdentityAPIVersion: "3",
	}

	clouds := clientconfig.Clouds{
		Clouds: map[string]clientconfig.Cloud{
			credential.Cloud: cloud,
		},
	}

	return yaml.Marshal(clouds)
}

// GenerateCloudConfig does the horrific translation between the myriad ways that OpenStack
// deems necessary to authenticate to the cloud configuration format, as consumed by
// the OpenStack cloud provider and Cinder CSI.
func GenerateCloudConfig(cloudsYAML []byte, name string) (string, error) {
	var clouds clientconfig.Clouds

	if err := yaml.Unmarshal(cloudsYAML, &clouds); err != nil {
		return "", err
	}

	cloud, ok := clouds.Clouds[name]
	if !ok {
		return "", fmt.Errorf("%w: cloud '%s' not found in clouds.yaml", ErrCloudConfiguration, name)
	}

	if cloud.AuthType != clientconfig.AuthV3ApplicationCredential || cloud.AuthInfo == nil {
		return "", fmt.Errorf("%w: v3applicationcredential auth_type must be specified in clouds.yaml", ErrCloudConfiguration)
	}

	cloudConfig := ini.Empty()

	global, err := cloudConfig.NewSection("Global")
	if err != nil {
		return "", err
	}

	if _, err := global.NewKey("auth-url", cloud.AuthInfo.AuthURL); err != nil {
		return "", err
	}

	if _, err := global.NewKey("application-credential-id", cloud.AuthInfo.ApplicationCredentialID); err != nil {
		return "", err
	}

	if _, err := global.NewKey("application-credential-secret", cloud.AuthInfo.ApplicationCredentialSecret); err != nil {
		return "", err
	}

	if cloud.RegionName != "" {
		if _, err := global.NewKey("region", cloud.RegionName); err != nil {
			return "", err
		}
	}

	if cloud.Interface != "" {
		if _, err := global.NewKey("interface", cloud.Interface); err != nil {
			return "", err
		}
	}

	buffer := &bytes.Buffer{}

	if _, err := cloudConfig.WriteTo(buffer); err != nil {
		return "", err
	}

	return buffer.String(), nil
}
